// Package authstore holds the authentication state of one browser session:
// the signed-in user, a loading flag and the last error. A Store is built per
// session and passed down explicitly, there is no process-wide instance.
package authstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/modernplatform/modern-platform/internal/backend"
	"github.com/modernplatform/modern-platform/internal/models"
	"github.com/modernplatform/modern-platform/pkg/logger"
	"github.com/modernplatform/modern-platform/pkg/metrics"
)

// ErrNoIdentity is returned when the backend answered without a user.
var ErrNoIdentity = errors.New("backend returned no user")

// State is a consistent view of the store. After an operation settles at
// most one of User and Err is set.
type State struct {
	User      *models.User
	IsLoading bool
	Err       error
}

// ErrorMessage is Err's text, or "".
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

type Store struct {
	client *backend.Client

	mu      sync.Mutex
	session *backend.Session
	user    *models.User
	loading bool
	err     error
}

// New returns a store that is loading until the first RestoreSession.
func New(client *backend.Client) *Store {
	return &Store{client: client, loading: true}
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	var u *models.User
	if s.user != nil {
		cp := *s.user
		u = &cp
	}
	return State{User: u, IsLoading: s.loading, Err: s.err}
}

// Session is the backend session behind the current user, nil when signed out.
func (s *Store) Session() *backend.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil
	}
	cp := *s.session
	return &cp
}

// Context returns ctx carrying the current access token.
func (s *Store) Context(ctx context.Context) context.Context {
	if sess := s.Session(); sess != nil {
		return backend.WithAccessToken(ctx, sess.AccessToken)
	}
	return ctx
}

func (s *Store) begin(clearErr bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	if clearErr {
		s.err = nil
	}
}

func (s *Store) succeed(sess *backend.Session, u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = sess
	s.user = u
	s.loading = false
	s.err = nil
}

func (s *Store) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	s.user = nil
	s.loading = false
	s.err = err
}

func record(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.AuthEvents.WithLabelValues(op, outcome).Inc()
}

// SignIn authenticates and loads, or creates, the caller's profile.
func (s *Store) SignIn(ctx context.Context, email, password string) (err error) {
	defer func() { record("sign_in", err) }()
	s.begin(true)
	sess, err := s.client.Auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.fail(err)
		return err
	}
	u, err := s.reconcile(backend.WithAccessToken(ctx, sess.AccessToken), sess.User)
	if err != nil {
		s.fail(err)
		return err
	}
	s.succeed(sess, u)
	return nil
}

// SignUp registers an account and creates its profile with fullName.
// A taken email yields an error matching backend.ErrAlreadyRegistered.
// When the backend holds the account for email confirmation the store
// settles signed out with no error.
func (s *Store) SignUp(ctx context.Context, email, password, fullName string) (err error) {
	defer func() { record("sign_up", err) }()
	s.begin(true)
	sess, err := s.client.Auth.SignUp(ctx, email, password)
	if err != nil {
		s.fail(err)
		return err
	}
	if sess.User.ID == "" {
		s.fail(ErrNoIdentity)
		return ErrNoIdentity
	}
	if sess.AccessToken == "" {
		// Email confirmation pending: nothing may be written yet. The
		// profile is created on first sign-in.
		s.succeed(nil, nil)
		return nil
	}
	var profile models.Profile
	row := models.NewProfile{ID: sess.User.ID, Email: email, FullName: fullName}
	if err := s.client.Rows.Insert(backend.WithAccessToken(ctx, sess.AccessToken), backend.TableProfiles, row, &profile); err != nil {
		err = fmt.Errorf("create profile: %w", err)
		s.fail(err)
		return err
	}
	s.succeed(sess, &models.User{
		ID:        sess.User.ID,
		Email:     email,
		FullName:  fullName,
		CreatedAt: sess.User.CreatedAt,
	})
	return nil
}

// SignOut ends the backend session. The local user is cleared either way;
// a backend failure is kept as the error.
func (s *Store) SignOut(ctx context.Context) (err error) {
	defer func() { record("sign_out", err) }()
	s.begin(false)
	if err := s.client.Auth.SignOut(ctx, s.Session()); err != nil {
		logger.Warnf("sign out: %v", err)
		s.fail(err)
		return err
	}
	s.succeed(nil, nil)
	return nil
}

// RestoreSession resumes a previously saved backend session. With no usable
// session the store settles with no user and no error.
func (s *Store) RestoreSession(ctx context.Context, saved *backend.Session) (err error) {
	defer func() { record("restore", err) }()
	s.begin(false)
	sess, err := s.client.Auth.GetSession(ctx, saved)
	if err != nil {
		s.fail(err)
		return err
	}
	if sess == nil || sess.User.ID == "" {
		s.succeed(nil, nil)
		return nil
	}
	u, err := s.reconcile(backend.WithAccessToken(ctx, sess.AccessToken), sess.User)
	if err != nil {
		s.fail(err)
		return err
	}
	s.succeed(sess, u)
	return nil
}

// UpdateProfile replaces the held user, e.g. after a profile edit.
func (s *Store) UpdateProfile(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
}

func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
}

// reconcile fetches the identity's profile, creating it on first sight. A
// concurrent creation surfaces as ErrConflict and is resolved by re-reading.
func (s *Store) reconcile(ctx context.Context, id backend.Identity) (*models.User, error) {
	if id.ID == "" {
		return nil, ErrNoIdentity
	}
	p, err := s.fetchProfile(ctx, id.ID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		var created models.Profile
		err := s.client.Rows.Insert(ctx, backend.TableProfiles, models.NewProfile{ID: id.ID, Email: id.Email}, &created)
		switch {
		case err == nil:
			p = &created
		case errors.Is(err, backend.ErrConflict):
			if p, err = s.fetchProfile(ctx, id.ID); err != nil {
				return nil, err
			}
			if p == nil {
				return nil, fmt.Errorf("profile %s vanished after conflict", id.ID)
			}
		default:
			return nil, fmt.Errorf("create profile: %w", err)
		}
	}
	u := &models.User{ID: id.ID, Email: id.Email, FullName: p.FullName, CreatedAt: id.CreatedAt}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	return u, nil
}

func (s *Store) fetchProfile(ctx context.Context, id string) (*models.Profile, error) {
	var rows []models.Profile
	if err := s.client.Rows.Select(ctx, backend.TableProfiles, backend.Query{Eq: map[string]string{"id": id}, Limit: 1}, &rows); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
