package repository

import "github.com/jmoiron/sqlx"

// Ledger объединяет репозитории всех записей маркетплейса поверх одного пула.
type Ledger struct {
	*WalletRepository
	*ListingRepository
	*OrderRepository
	*EscrowRepository
	*TransactionRepository
	*AffiliateRepository
}

func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{
		WalletRepository:      NewWalletRepository(db),
		ListingRepository:     NewListingRepository(db),
		OrderRepository:       NewOrderRepository(db),
		EscrowRepository:      NewEscrowRepository(db),
		TransactionRepository: NewTransactionRepository(db),
		AffiliateRepository:   NewAffiliateRepository(db),
	}
}
