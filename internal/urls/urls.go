// Package urls holds the named route table shared by the HTTP router and the
// model helpers that build links to those routes.
package urls

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ErrNoReverseMatch is returned when a name is unknown or the arguments do not
// fit its pattern.
var ErrNoReverseMatch = errors.New("no reverse match")

var routes = map[string]string{
	"auth:register": "/v1/auth/register",
	"auth:login":    "/v1/auth/login",
	"auth:refresh":  "/v1/auth/refresh",
	"auth:logout":   "/v1/auth/logout",

	"student:index":           "/v1/student/courses",
	"student:detail":          "/v1/student/courses/:id",
	"student:leave_course":    "/v1/student/courses/:id/leave",
	"student:register_course": "/v1/student/courses/:id/register/*token",
	"student:profile":         "/v1/student/profile",

	"teacher:index":         "/v1/teacher/courses",
	"teacher:create":        "/v1/teacher/courses",
	"teacher:detail":        "/v1/teacher/courses/:id",
	"teacher:edit":          "/v1/teacher/courses/:id",
	"teacher:delete":        "/v1/teacher/courses/:id",
	"teacher:start_session": "/v1/teacher/courses/:id/session",
	"teacher:end_session":   "/v1/teacher/courses/:id/session",
	"teacher:roster":        "/v1/teacher/courses/:id/roster.xlsx",
	"teacher:events":        "/v1/teacher/courses/:id/events",

	"admin:delete_user": "/v1/admin/users/:id",
}

// Pattern returns the router pattern registered under name. It panics on an
// unknown name so a typo fails at startup rather than at request time.
func Pattern(name string) string {
	p, ok := routes[name]
	if !ok {
		panic(fmt.Sprintf("urls: unknown route %q", name))
	}
	return p
}

// Names lists every registered route name in sorted order.
func Names() []string {
	names := make([]string, 0, len(routes))
	for n := range routes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reverse fills the parameters of the named pattern with args, in order.
// Named parameters (":id") need a non-empty value; a trailing catch-all
// ("*token") accepts an empty value and then leaves the path ending in "/".
func Reverse(name string, args ...string) (string, error) {
	p, ok := routes[name]
	if !ok {
		return "", fmt.Errorf("%w: unknown route %q", ErrNoReverseMatch, name)
	}
	segments := strings.Split(p, "/")
	used := 0
	for i, seg := range segments {
		if seg == "" || (seg[0] != ':' && seg[0] != '*') {
			continue
		}
		if used >= len(args) {
			return "", fmt.Errorf("%w: %s expects more arguments", ErrNoReverseMatch, name)
		}
		arg := args[used]
		used++
		if seg[0] == ':' && arg == "" {
			return "", fmt.Errorf("%w: %s parameter %s is empty", ErrNoReverseMatch, name, seg[1:])
		}
		segments[i] = url.PathEscape(arg)
	}
	if used != len(args) {
		return "", fmt.Errorf("%w: %s takes %d arguments, got %d", ErrNoReverseMatch, name, used, len(args))
	}
	return strings.Join(segments, "/"), nil
}

// MustReverse is Reverse for callers whose arguments are known to fit.
func MustReverse(name string, args ...string) string {
	u, err := Reverse(name, args...)
	if err != nil {
		panic(err)
	}
	return u
}
