package usecase

import "errors"

// Определение ошибок сервиса
var (
	ErrTransactionNotFound = errors.New("transaction not found")
)
