// Package db embeds the database schema.
package db

import _ "embed"

// Schema creates the products, cart_items and recent_products tables. It is
// idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string
