package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Route is the classified intent of a question.
type Route string

const (
	RouteFAQ       Route = "faq"
	RouteSQL       Route = "sql"
	RouteSmallTalk Route = "small_talk"
)

var ErrNoRoute = errors.New("no route matched the question")

// Router classifies a question into exactly one route. Implementations return
// ErrNoRoute rather than guessing when no route fits.
type Router interface {
	Route(ctx context.Context, question string) (Route, error)
}

func Routes() []Route {
	return []Route{RouteFAQ, RouteSQL, RouteSmallTalk}
}

func ParseRoute(value string) (Route, error) {
	candidate := Route(strings.ToLower(strings.TrimSpace(value)))
	for _, route := range Routes() {
		if route == candidate {
			return route, nil
		}
	}
	return "", fmt.Errorf("unknown route %q", value)
}

func (r Route) String() string {
	return string(r)
}
