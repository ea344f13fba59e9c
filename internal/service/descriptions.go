package service

import "strings"

const fallbackTitle = "Item"

func titleOrFallback(title string) string {
	if strings.TrimSpace(title) == "" {
		return fallbackTitle
	}
	return title
}

func PurchaseDescription(title string) string {
	return "Purchased: " + titleOrFallback(title)
}

func SaleDescription(title string) string {
	return "Sale: " + titleOrFallback(title)
}

func CommissionDescription(title string) string {
	return "Affiliate commission: " + titleOrFallback(title)
}
