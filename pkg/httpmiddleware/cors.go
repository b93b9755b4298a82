package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowOrigins lists allowed origins. Empty or "*" allows every origin.
	// An entry may use one leading wildcard label, e.g. "https://*.example.com".
	AllowOrigins []string
	// AllowMethods defaults to the methods used by the API.
	AllowMethods []string
	// AllowHeaders defaults to echoing Access-Control-Request-Headers.
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	// MaxAge in seconds for preflight caching; zero omits the header.
	MaxAge int
}

type originMatcher struct {
	any      bool
	exact    map[string]string // lowercase -> configured
	suffixes []wildcardOrigin
}

type wildcardOrigin struct {
	scheme string // "https://"
	suffix string // ".example.com"
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{any: len(origins) == 0, exact: make(map[string]string)}
	for _, o := range origins {
		if o == "*" {
			m.any = true
			continue
		}
		lower := strings.ToLower(o)
		if scheme, rest, ok := strings.Cut(lower, "://*."); ok {
			m.suffixes = append(m.suffixes, wildcardOrigin{scheme: scheme + "://", suffix: "." + rest})
			continue
		}
		m.exact[lower] = o
	}
	return m
}

// match returns the Access-Control-Allow-Origin value for origin, or "".
// With credentials the concrete origin is echoed instead of "*".
func (m originMatcher) match(origin string, credentials bool) string {
	if m.any {
		if credentials {
			return origin
		}
		return "*"
	}
	lower := strings.ToLower(origin)
	if configured, ok := m.exact[lower]; ok {
		return configured
	}
	for _, w := range m.suffixes {
		host, ok := strings.CutPrefix(lower, w.scheme)
		if ok && strings.HasSuffix(host, w.suffix) && len(host) > len(w.suffix) {
			return origin
		}
	}
	return ""
}

// CORS answers preflight requests and decorates cross-origin responses.
func CORS(cfg CORSConfig) Middleware {
	origins := newOriginMatcher(cfg.AllowOrigins)

	methods := strings.Join(cfg.AllowMethods, ", ")
	if methods == "" {
		methods = "GET, POST, PUT, DELETE, OPTIONS"
	}
	headers := strings.Join(cfg.AllowHeaders, ", ")
	expose := strings.Join(cfg.ExposeHeaders, ", ")
	var maxAge string
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			origin := r.Header.Get("Origin")
			if !origins.any || cfg.AllowCredentials {
				h.Add("Vary", "Origin")
			}
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allow := origins.match(origin, cfg.AllowCredentials)
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if preflight {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
			}

			if allow != "" {
				h.Set("Access-Control-Allow-Origin", allow)
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if !preflight {
				if allow != "" && expose != "" {
					h.Set("Access-Control-Expose-Headers", expose)
				}
				next.ServeHTTP(w, r)
				return
			}

			if allow != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				switch {
				case headers != "":
					h.Set("Access-Control-Allow-Headers", headers)
				case r.Header.Get("Access-Control-Request-Headers") != "":
					h.Set("Access-Control-Allow-Headers", r.Header.Get("Access-Control-Request-Headers"))
				}
				if maxAge != "" {
					h.Set("Access-Control-Max-Age", maxAge)
				}
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
