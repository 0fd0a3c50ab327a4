package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                  "/",
		"/metrics":                          "/metrics",
		"/v1/usuarios/abc":                  "/v1/usuarios/:id",
		"/v1/usuarios/abc/desbloquear":      "/v1/usuarios/:id/desbloquear",
		"/v1/usuarios/abc/extra/deep":       "/v1/usuarios/abc/extra/deep",
		"/v1/usuarios":                      "/v1/usuarios",
		"/v1/auditoria":                     "/v1/auditoria",
		"/v1/auditoria?page=2&limit=10":     "/v1/auditoria",
		"/v1/auth/login":                    "/v1/auth/login",
		"/v1/auth/cambiar-password":         "/v1/auth/cambiar-password",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
