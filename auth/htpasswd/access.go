// Package htpasswd provides a simple authentication scheme that checks for the
// user credential hash in an htpasswd formatted file in a configuration-determined
// location. Only bcrypt hashes (htpasswd -B) are supported.
//
// This authentication method MUST be used under TLS, as simple token-replay attack is possible.
package htpasswd

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/mitchellh/mapstructure"

	"github.com/smarthome/extgateway/auth"
	"github.com/smarthome/extgateway/internal/dcontext"
)

type options struct {
	Realm string `mapstructure:"realm"`
	Path  string `mapstructure:"path"`
	// Admins lists the users granted the admin role. When empty, every
	// authenticated user is an admin.
	Admins []string `mapstructure:"admins"`
}

type accessController struct {
	realm    string
	htpasswd *htpasswd
	admins   map[string]bool
}

var _ auth.AccessController = &accessController{}

func newAccessController(opts map[string]any) (auth.AccessController, error) {
	var o options
	if err := mapstructure.Decode(opts, &o); err != nil {
		return nil, fmt.Errorf("htpasswd access controller: %w", err)
	}

	if o.Realm == "" {
		return nil, fmt.Errorf(`"realm" must be set for htpasswd access controller`)
	}
	if o.Path == "" {
		return nil, fmt.Errorf(`"path" must be set for htpasswd access controller`)
	}

	f, err := os.Open(o.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := newHTPasswd(f)
	if err != nil {
		return nil, err
	}

	var admins map[string]bool
	if len(o.Admins) > 0 {
		admins = make(map[string]bool, len(o.Admins))
		for _, name := range o.Admins {
			admins[name] = true
		}
	}

	return &accessController{realm: o.Realm, htpasswd: h, admins: admins}, nil
}

func (ac *accessController) Authorized(ctx context.Context, accessRecords ...auth.Access) (context.Context, error) {
	req, err := dcontext.GetRequest(ctx)
	if err != nil {
		return nil, err
	}

	username, password, ok := req.BasicAuth()
	if !ok {
		return nil, &challenge{
			realm: ac.realm,
			err:   auth.ErrInvalidCredential,
		}
	}

	if err := ac.htpasswd.authenticateUser(username, password); err != nil {
		dcontext.GetLogger(ctx).Errorf("error authenticating user %q: %v", username, err)
		return nil, &challenge{
			realm: ac.realm,
			err:   auth.ErrAuthenticationFailure,
		}
	}

	user := auth.UserInfo{Name: username}
	if ac.admins == nil || ac.admins[username] {
		user.Roles = []string{auth.RoleAdmin}
	}

	if len(accessRecords) > 0 && !user.HasRole(auth.RoleAdmin) {
		dcontext.GetLogger(ctx).Warnf("user %q denied %s on %s %q", username, accessRecords[0].Action, accessRecords[0].Type, accessRecords[0].Name)
		return nil, auth.ErrForbidden
	}

	return auth.WithUser(ctx, user), nil
}

// challenge implements the auth.Challenge interface.
type challenge struct {
	realm string
	err   error
}

var _ auth.Challenge = challenge{}

// SetHeaders sets the basic challenge header on the response.
func (ch challenge) SetHeaders(r *http.Request, w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", ch.realm))
}

func (ch challenge) Error() string {
	return fmt.Sprintf("basic authentication challenge for realm %q: %s", ch.realm, ch.err)
}

func init() {
	if err := auth.Register("htpasswd", auth.InitFunc(newAccessController)); err != nil {
		panic(err)
	}
}
