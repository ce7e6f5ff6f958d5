package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var errFakeNotFound = errors.New("not found")

// fakeStore is an in-memory Store for exercising the service without
// Postgres.
type fakeStore struct {
	mu              sync.Mutex
	usersByEmail    map[string]Account
	usersByID       map[uuid.UUID]Account
	sessionsByToken map[string]Session
	resetsByToken   map[string]PasswordReset
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		usersByEmail:    make(map[string]Account),
		usersByID:       make(map[uuid.UUID]Account),
		sessionsByToken: make(map[string]Session),
		resetsByToken:   make(map[string]PasswordReset),
	}
}

func (f *fakeStore) seedUser(a Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.usersByEmail[strings.ToLower(a.Email)] = a
	f.usersByID[a.ID] = a
}

func (f *fakeStore) CreateUser(_ context.Context, a Account) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(a.Email)
	if _, ok := f.usersByEmail[key]; ok {
		return Account{}, ErrEmailTaken
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	f.usersByEmail[key] = a
	f.usersByID[a.ID] = a
	return a, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.usersByEmail[strings.ToLower(email)]
	if !ok {
		return Account{}, errFakeNotFound
	}
	return a, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id uuid.UUID) (Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.usersByID[id]
	if !ok {
		return Account{}, errFakeNotFound
	}
	return a, nil
}

func (f *fakeStore) UpdateUserPassword(_ context.Context, id uuid.UUID, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.usersByID[id]
	if !ok {
		return errFakeNotFound
	}
	a.PasswordHash = passwordHash
	a.UpdatedAt = time.Now()
	f.usersByID[id] = a
	f.usersByEmail[strings.ToLower(a.Email)] = a
	return nil
}

func (f *fakeStore) CreateSession(_ context.Context, s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionsByToken[s.RefreshToken] = s
	return nil
}

func (f *fakeStore) GetSessionByToken(_ context.Context, hashedToken string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessionsByToken[hashedToken]
	if !ok {
		return Session{}, errFakeNotFound
	}
	return s, nil
}

func (f *fakeStore) RotateSessionToken(_ context.Context, sessionID uuid.UUID, hashedToken string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, s := range f.sessionsByToken {
		if s.ID == sessionID {
			delete(f.sessionsByToken, key)
			s.RefreshToken = hashedToken
			s.ExpiresAt = expiresAt
			f.sessionsByToken[hashedToken] = s
			return nil
		}
	}
	return errFakeNotFound
}

func (f *fakeStore) DeleteSessionByToken(_ context.Context, hashedToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessionsByToken, hashedToken)
	return nil
}

func (f *fakeStore) DeleteSessionsByUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, s := range f.sessionsByToken {
		if s.UserID == userID {
			delete(f.sessionsByToken, key)
		}
	}
	return nil
}

func (f *fakeStore) CreatePasswordReset(_ context.Context, r PasswordReset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetsByToken[r.Token] = r
	return nil
}

func (f *fakeStore) GetPasswordResetByToken(_ context.Context, token string) (PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resetsByToken[token]
	if !ok {
		return PasswordReset{}, errFakeNotFound
	}
	return r, nil
}

func (f *fakeStore) UsePasswordReset(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resetsByToken[token]
	if !ok {
		return errFakeNotFound
	}
	now := time.Now()
	r.UsedAt = &now
	f.resetsByToken[token] = r
	return nil
}

func (f *fakeStore) DeletePasswordResetsByUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, r := range f.resetsByToken {
		if r.UserID == userID {
			delete(f.resetsByToken, key)
		}
	}
	return nil
}
