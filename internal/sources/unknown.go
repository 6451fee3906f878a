package sources

import (
	"strings"

	"github.com/ayane-dev/musubi/internal/urlkit"
)

// UnknownSource is the sentinel for domains no parser claims. It carries no
// structure beyond its raw form; the graph walker settles unknowns as leaf
// nodes so an artist's personal homepage still lands in the identity set.
type UnknownSource struct {
	base
}

func newUnknownSource(toks *urlkit.Tokens, env *Env) *UnknownSource {
	return &UnknownSource{base: base{site: "unknown", toks: toks, env: env}}
}

func (u *UnknownSource) String() string {
	return u.norm.get(func() string {
		return strings.TrimRight(strings.TrimSpace(u.toks.Raw), "/")
	})
}
