package domain

import (
	"time"

	"github.com/yndnr/thingvault/pkg/crypto/asym"
	"github.com/yndnr/thingvault/pkg/token"
)

// App is a client public key registered under a repository.
type App struct {
	accessClock

	Token      string
	Repository *Repository
	PublicKey  asym.PublicKey
}

// NewApp registers pub under repo with a fresh token.
func NewApp(repo *Repository, pub asym.PublicKey, now time.Time) (*App, error) {
	tok, err := token.NewAppToken()
	if err != nil {
		return nil, err
	}
	a := &App{
		Token:      tok,
		Repository: repo,
		PublicKey:  pub,
	}
	a.Touch(now)
	return a, nil
}

// LookupKey identifies the app by repository and public key. Registering
// the same key twice under one repository yields the same app.
func (a *App) LookupKey() string {
	return AppLookupKey(a.Repository.ID, a.PublicKey)
}

// AppLookupKey builds the registry key for (repositoryID, pub).
func AppLookupKey(repositoryID string, pub asym.PublicKey) string {
	return repositoryID + "/" + pub.String()
}
