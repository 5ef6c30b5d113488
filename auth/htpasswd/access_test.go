package htpasswd

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/smarthome/extgateway/auth"
	"github.com/smarthome/extgateway/internal/dcontext"
)

func hash(t *testing.T, password string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func writeHTPasswd(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "htpasswd")
	content := fmt.Sprintf("# admins\nalice:%s\n\nbob:%s\n", hash(t, "alicepass"), hash(t, "bobpass"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func requestContext(user, password string) context.Context {
	r := httptest.NewRequest(http.MethodPost, "/extensions/binding-hue/install", nil)
	if user != "" {
		r.SetBasicAuth(user, password)
	}
	return dcontext.WithRequest(context.Background(), r)
}

var installAccess = auth.Access{
	Resource: auth.Resource{Type: "extension", Name: "binding-hue"},
	Action:   "install",
}

func TestBasicAccessController(t *testing.T) {
	path := writeHTPasswd(t)

	ac, err := auth.GetAccessController("htpasswd", map[string]any{
		"realm":  "extgateway",
		"path":   path,
		"admins": []any{"alice"},
	})
	require.NoError(t, err)

	// no credentials
	_, err = ac.Authorized(requestContext("", ""), installAccess)
	challenge, ok := err.(auth.Challenge)
	require.True(t, ok, "expected a challenge, got %v", err)

	w := httptest.NewRecorder()
	challenge.SetHeaders(nil, w)
	require.Equal(t, `Basic realm="extgateway"`, w.Header().Get("WWW-Authenticate"))

	// wrong password
	_, err = ac.Authorized(requestContext("alice", "wrong"), installAccess)
	require.Implements(t, (*auth.Challenge)(nil), err)

	// unknown user
	_, err = ac.Authorized(requestContext("mallory", "alicepass"), installAccess)
	require.Implements(t, (*auth.Challenge)(nil), err)

	// authenticated but not an admin
	_, err = ac.Authorized(requestContext("bob", "bobpass"), installAccess)
	require.Equal(t, auth.ErrForbidden, err)

	ctx, err := ac.Authorized(requestContext("alice", "alicepass"), installAccess)
	require.NoError(t, err)
	require.Equal(t, "alice", ctx.Value(auth.UserNameKey))
	require.True(t, ctx.Value(auth.UserKey).(auth.UserInfo).HasRole(auth.RoleAdmin))
}

func TestEveryUserAdminWithoutList(t *testing.T) {
	ac, err := newAccessController(map[string]any{
		"realm": "extgateway",
		"path":  writeHTPasswd(t),
	})
	require.NoError(t, err)

	_, err = ac.Authorized(requestContext("bob", "bobpass"), installAccess)
	require.NoError(t, err)
}

func TestAccessControllerOptions(t *testing.T) {
	_, err := newAccessController(map[string]any{"path": "/nonexistent"})
	require.Error(t, err)

	_, err = newAccessController(map[string]any{"realm": "extgateway"})
	require.Error(t, err)

	_, err = newAccessController(map[string]any{"realm": "extgateway", "path": filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}

func TestParseHTPasswd(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		input   string
		err     bool
		entries map[string][]byte
	}{
		{
			desc: "basic example",
			input: `
# This is a comment in a basic example.
bilbo:{SHA}5siv5c0SHx681xU6GiSx9ZQryqs=
frodo:$2y$05$926C3y10Quzn/LnqQH86VOEVh/18T6RnLaS.khre96jLNL/7e.K5W
MiShil:$2y$05$0oHgwMehvoe8iAWS8I.7l.KoECXrwVaC16RPfaSCU5eVTFrATuMI2
DeokMan:공주님
`,
			entries: map[string][]byte{
				"bilbo":   []byte("{SHA}5siv5c0SHx681xU6GiSx9ZQryqs="),
				"frodo":   []byte("$2y$05$926C3y10Quzn/LnqQH86VOEVh/18T6RnLaS.khre96jLNL/7e.K5W"),
				"MiShil":  []byte("$2y$05$0oHgwMehvoe8iAWS8I.7l.KoECXrwVaC16RPfaSCU5eVTFrATuMI2"),
				"DeokMan": []byte("공주님"),
			},
		},
		{
			desc: "ensures comments are filtered",
			input: `
# asdf:asdf
`,
			entries: map[string][]byte{},
		},
		{
			desc: "ensure midline hash is not comment",
			input: `
asdf:as#df
`,
			entries: map[string][]byte{
				"asdf": []byte("as#df"),
			},
		},
		{
			desc: "ensure midline hash is not comment",
			input: `
# A valid comment
valid:entry
asdf
`,
			err: true,
		},
	} {
		entries, err := parseHTPasswd(strings.NewReader(tc.input))
		if tc.err {
			require.Error(t, err, tc.desc)
			continue
		}

		require.NoError(t, err, tc.desc)
		require.Equal(t, tc.entries, entries, tc.desc)
	}
}
