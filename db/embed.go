// Package db provides the embedded database schema and seed data.
package db

import "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Seed holds the demo product catalog (seed/products.json) and the static
// coupon catalog (seed/coupons.jsonl).
//
//go:embed seed/products.json seed/coupons.jsonl
var Seed embed.FS

// Seed file names inside Seed.
const (
	ProductsFile = "seed/products.json"
	CouponsFile  = "seed/coupons.jsonl"
)
