package domain

import (
	"strings"
	"time"
)

// Customer: зарегистрированный покупатель. Email уникален среди всех клиентов.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// ValidateRegistration проверяет входные данные регистрации клиента.
// Email сравнивается как есть, без приведения регистра.
func ValidateRegistration(name, email string) error {
	if strings.TrimSpace(name) == "" {
		return ErrCustomerNameRequired
	}
	if strings.TrimSpace(email) == "" {
		return ErrEmailRequired
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return ErrEmailInvalid
	}
	return nil
}
