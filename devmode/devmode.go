// Package devmode provides shared configuration for development mode across
// the client and desk-devserver.
package devmode

// Token is the bearer token desk-devserver seeds for its admin user when no
// SEED_ADMIN_TOKEN is configured. It must never be accepted in production.
const Token = "LOCAL_DEV_MODE_NOT_FOR_PRODUCTION"

// AdminUserID is the id of the admin user seeded by desk-devserver.
const AdminUserID = "dev-admin"
