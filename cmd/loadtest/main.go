// Command loadtest проверяет, что конкурентные покупки не уводят остаток товара в минус.
// Он заводит клиента и товар с заданным остатком, параллельно оформляет заказы и сверяет итог.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
)

const idempotencyHeader = "idempotency-key"

type config struct {
	addr        string
	orders      int
	stock       int64
	qty         int64
	priceMinor  int64
	concurrency int
	connections int
	timeout     time.Duration
	outputPath  string
}

func parseConfig(args []string) (config, error) {
	var cfg config

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.orders, "orders", 200, "number of concurrent PlaceOrder calls")
	fs.Int64Var(&cfg.stock, "stock", 50, "initial product quantity")
	fs.Int64Var(&cfg.qty, "qty", 1, "units requested by each order")
	fs.Int64Var(&cfg.priceMinor, "price-minor", 1000, "product price in minor units")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of in-flight calls")
	fs.IntVar(&cfg.connections, "connections", 8, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch {
	case strings.TrimSpace(cfg.addr) == "":
		return cfg, errors.New("addr is required")
	case cfg.orders <= 0:
		return cfg, errors.New("orders must be > 0")
	case cfg.stock < 0:
		return cfg, errors.New("stock must be >= 0")
	case cfg.qty <= 0:
		return cfg, errors.New("qty must be > 0")
	case cfg.priceMinor < 0:
		return cfg, errors.New("price-minor must be >= 0")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	}
	return cfg, nil
}

// loadRunner оформляет заказы на один товар через пул клиентов.
type loadRunner struct {
	cfg     config
	clients []*grpcsvc.StorefrontClient
	col     *collector
	runID   string
}

func (p *loadRunner) client(i int) *grpcsvc.StorefrontClient {
	return p.clients[i%len(p.clients)]
}

func (p *loadRunner) run(ctx context.Context) (report, error) {
	seedCtx, cancel := context.WithTimeout(ctx, p.cfg.timeout)
	defer cancel()

	customer, err := p.client(0).RegisterCustomer(seedCtx, &grpcsvc.RegisterCustomerRequest{
		Name:  "Load Test",
		Email: fmt.Sprintf("loadtest-%s@example.com", p.runID),
	})
	if err != nil {
		return report{}, fmt.Errorf("register customer: %w", err)
	}
	product, err := p.client(0).CreateProduct(seedCtx, &grpcsvc.CreateProductRequest{
		Name:       "loadtest-" + p.runID,
		PriceMinor: p.cfg.priceMinor,
		Quantity:   p.cfg.stock,
	})
	if err != nil {
		return report{}, fmt.Errorf("create product: %w", err)
	}

	stock := stockReport{
		ProductID:     product.Product.ID,
		InitialStock:  p.cfg.stock,
		UnitsPerOrder: p.cfg.qty,
	}
	var placed, rejected, unexpected atomic.Int64

	startedAt := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.concurrency)
	for i := 0; i < p.cfg.orders; i++ {
		g.Go(func() error {
			switch code := p.placeOrder(gctx, i, customer.Customer.ID, stock.ProductID); code {
			case codes.OK:
				placed.Add(1)
			case codes.FailedPrecondition:
				rejected.Add(1)
			default:
				unexpected.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	duration := time.Since(startedAt)

	finalCtx, finalCancel := context.WithTimeout(ctx, p.cfg.timeout)
	defer finalCancel()
	final, err := p.client(0).GetProduct(finalCtx, &grpcsvc.GetProductRequest{ProductID: stock.ProductID})
	if err != nil {
		return report{}, fmt.Errorf("read final stock: %w", err)
	}

	stock.Placed = placed.Load()
	stock.Rejected = rejected.Load()
	stock.Unexpected = unexpected.Load()
	stock.FinalQuantity = final.Product.Quantity

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Stock:           stock,
		Methods:         p.col.methodReports(),
	}
	if duration > 0 {
		result.RPS = float64(p.cfg.orders) / duration.Seconds()
	}
	return result, nil
}

func (p *loadRunner) placeOrder(ctx context.Context, index int, customerID, productID string) codes.Code {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.cfg.timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, idempotencyHeader, fmt.Sprintf("lt-place-%s-%d", p.runID, index))

	_, err := p.client(index).PlaceOrder(ctx, &grpcsvc.PlaceOrderRequest{
		CustomerID: customerID,
		Items:      []grpcsvc.OrderLine{{ProductID: productID, Qty: p.cfg.qty}},
	})
	code := status.Code(err)
	p.col.record("PlaceOrder", time.Since(start), code)
	return code
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]*grpcsvc.StorefrontClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, grpcsvc.NewStorefrontClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	p := &loadRunner{
		cfg:     cfg,
		clients: clients,
		col:     newCollector(),
		runID:   fmt.Sprintf("%d-%d", time.Now().UnixNano(), os.Getpid()),
	}
	result, err := p.run(context.Background())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "oversell check failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}

	if err := checkStock(result.Stock); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "stock check failed: %v\n", err)
		os.Exit(1)
	}
}
