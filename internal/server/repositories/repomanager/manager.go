package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophblog/internal/dbx"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/categories"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/comments"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/posts"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/prooftokens"
	"github.com/dmitrijs2005/gophblog/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a *sql.DB or an open *sql.Tx,
// so services can choose per call whether work runs in a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	ProofTokens(db dbx.DBTX) prooftokens.Repository
	Posts(db dbx.DBTX) posts.Repository
	Comments(db dbx.DBTX) comments.Repository
	Categories(db dbx.DBTX) categories.Repository
}
