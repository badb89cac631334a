package app

import (
	"github.com/bissquit/onestop-itsm/internal/admin"
	"github.com/bissquit/onestop-itsm/internal/assets"
	"github.com/bissquit/onestop-itsm/internal/changes"
	"github.com/bissquit/onestop-itsm/internal/domain"
	"github.com/bissquit/onestop-itsm/internal/incidents"
	incidentsmemory "github.com/bissquit/onestop-itsm/internal/incidents/memory"
	incidentspostgres "github.com/bissquit/onestop-itsm/internal/incidents/postgres"
	"github.com/bissquit/onestop-itsm/internal/pkg/store"
	"github.com/bissquit/onestop-itsm/internal/slm"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record kinds in the shared records table.
const (
	kindUser   = "user"
	kindGroup  = "group"
	kindAsset  = "asset"
	kindChange = "change"
	kindSLA    = "sla"
)

type stores struct {
	incidents incidents.Repository
	users     store.Store[admin.StoredUser]
	groups    store.Store[domain.ResolverGroup]
	assets    store.Store[domain.Asset]
	changes   store.Store[domain.ChangeRequest]
	slas      store.Store[domain.SLA]
}

// newStores returns PostgreSQL backed stores when db is set and process
// memory stores otherwise.
func newStores(db *pgxpool.Pool) *stores {
	st := &stores{
		users:   newStore[admin.StoredUser](db, kindUser),
		groups:  newStore[domain.ResolverGroup](db, kindGroup),
		assets:  newStore[domain.Asset](db, kindAsset),
		changes: newStore[domain.ChangeRequest](db, kindChange),
		slas:    newStore[domain.SLA](db, kindSLA),
	}
	if db != nil {
		st.incidents = incidentspostgres.NewRepository(db)
	} else {
		st.incidents = incidentsmemory.NewRepository()
	}
	return st
}

func newStore[T any](db *pgxpool.Pool, kind string) store.Store[T] {
	if db == nil {
		return store.NewMemory[T](kind)
	}
	return store.NewPostgres[T](db, kind)
}

type services struct {
	admin   *admin.Service
	assets  *assets.Service
	changes *changes.Service
	slas    *slm.Service
}

func newServices(st *stores) *services {
	return &services{
		admin:   admin.NewService(st.users, st.groups),
		assets:  assets.NewService(st.assets),
		changes: changes.NewService(st.changes),
		slas:    slm.NewService(st.slas),
	}
}
