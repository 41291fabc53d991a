package domain

import "errors"

var (
	// ErrInvalidProfile is returned when a search profile is incomplete or names unknown values.
	ErrInvalidProfile = errors.New("invalid query profile")
	// ErrEmptyBank is returned when an index build is requested for a bank without questions.
	ErrEmptyBank = errors.New("question bank is empty")
	// ErrIndexExists is returned when an index already holds entries and overwrite was not requested.
	ErrIndexExists = errors.New("index already exists")
	// ErrNotIndexed is returned when a search runs against an empty index.
	ErrNotIndexed = errors.New("no questions indexed")
	// ErrNoDocuments is returned when ingestion finds no readable documents.
	ErrNoDocuments = errors.New("no documents found")
)
