// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns; each model has a FromDomain constructor and a ToDomain method.
//
// JSON documents (settings, custom properties, invoice lines) are stored as
// jsonb text and marshalled in the mappers so the same models run on
// PostgreSQL and on the SQLite database used by repository tests.
package models
