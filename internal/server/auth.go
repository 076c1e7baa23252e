package server

import (
	"context"

	"github.com/hyperjump/moodify/internal/ingest"
	"github.com/hyperjump/moodify/internal/recommend"
	"github.com/hyperjump/moodify/internal/session"
)

// Music is everything the handlers need from the music service for one user.
type Music interface {
	ingest.Source
	recommend.Provider
}

// Account is an authorized user.
type Account struct {
	UserID string
	Music  Music
}

// Authenticator runs the login flow and resolves the acting user.
type Authenticator interface {
	AuthURL() string
	Login(ctx context.Context, state, code string) (userID string, err error)
	Account(ctx context.Context) (*Account, error)
	CurrentUser() (string, error)
	// Logout forgets the current user's token.
	Logout() (userID string, err error)
}

// SessionAuth serves Authenticator from a session manager.
type SessionAuth struct {
	Manager *session.Manager
	Tokens  *session.TokenStore
}

func (a SessionAuth) AuthURL() string {
	return a.Manager.AuthURL()
}

func (a SessionAuth) Login(ctx context.Context, state, code string) (string, error) {
	sess, err := a.Manager.Exchange(ctx, state, code)
	if err != nil {
		return "", err
	}
	return sess.UserID, nil
}

func (a SessionAuth) Account(ctx context.Context) (*Account, error) {
	sess, err := a.Manager.Current(ctx)
	if err != nil {
		return nil, err
	}
	return &Account{UserID: sess.UserID, Music: sess.Spotify}, nil
}

func (a SessionAuth) CurrentUser() (string, error) {
	return a.Tokens.Current()
}

func (a SessionAuth) Logout() (string, error) {
	userID, err := a.Tokens.Current()
	if err != nil {
		return "", err
	}
	if err := a.Manager.Logout(userID); err != nil {
		return "", err
	}
	return userID, nil
}
