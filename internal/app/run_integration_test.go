package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
)

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg)
	require.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	require.ErrorContains(t, err, "unsupported storage driver")
}

func TestRun_ServesStorefrontAPI(t *testing.T) {
	grpcPort := findFreePort(t)
	cfg := DefaultConfig()
	cfg.GRPCAddr = fmt.Sprintf("127.0.0.1:%d", grpcPort)
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()
	defer func() {
		cancel()
		<-done
	}()

	conn, err := grpc.NewClient(cfg.GRPCAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := grpcsvc.NewStorefrontClient(conn)

	var customer *grpcsvc.RegisterCustomerResponse
	require.Eventually(t, func() bool {
		callCtx, callCancel := context.WithTimeout(ctx, time.Second)
		defer callCancel()
		resp, callErr := client.RegisterCustomer(callCtx, &grpcsvc.RegisterCustomerRequest{Name: "Alice", Email: "alice@example.com"})
		if callErr != nil {
			return false
		}
		customer = resp
		return true
	}, 3*time.Second, 50*time.Millisecond)

	product, err := client.CreateProduct(ctx, &grpcsvc.CreateProductRequest{Name: "Widget", PriceMinor: 250, Quantity: 2})
	require.NoError(t, err)

	_, err = client.PlaceOrder(ctx, &grpcsvc.PlaceOrderRequest{
		CustomerID: customer.Customer.ID,
		Items:      []grpcsvc.OrderLine{{ProductID: product.Product.ID, Qty: 3}},
	})
	require.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestInitRuntimeDependencies_PostgresSuccess(t *testing.T) {
	dsn := postgresTestDSNCandidate()
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn
	cfg.PostgresAutoMigrate = true

	ctx := context.Background()
	deps, err := initRuntimeDependencies(ctx, cfg, log.WithField("test", "postgres-init"))
	if err != nil {
		t.Skipf("postgres is not available for app integration test: %v", err)
	}
	defer func() { _ = deps.close() }()

	require.Equal(t, healthcheck.StatusHealthy, deps.storageChecker.Check(ctx).Status)

	_, err = deps.customers.FindByID(ctx, "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
}

func postgresTestDSNCandidate() string {
	return strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN"))
}
