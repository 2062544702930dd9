package inbound

import (
	"fmt"
	"strings"

	"github.com/businessgohq/bridge/internal/identity"
)

// User-facing texts. The bridge fronts a Spanish-speaking operation;
// keep the wording in sync with the operator handbook.
const (
	replyLoggedOut   = "Sesión cerrada. Hasta pronto."
	replyNoSession   = "No tienes una sesión activa."
	replyLockedOut   = "Demasiados intentos fallidos. Escríbenos de nuevo para recibir un código nuevo."
	replyNoTenants   = "Tu usuario no tiene empresas asignadas. Contacta al administrador."
	replyCodePrompt  = "Tu código de acceso es: %s. Respóndelo para iniciar sesión."
	replyCodeExpired = "Tu código venció. Te enviamos uno nuevo: %s"
	replySessionOver = "Tu sesión expiró. Te enviamos un código nuevo: %s"
	replyWelcome     = "Código verificado. Estás trabajando en %s."
	replySelected    = "Listo. Estás trabajando en %s."
	replyBadChoice   = "Opción inválida. %s"
)

func replyCodeSent(code string) string {
	return fmt.Sprintf(replyCodePrompt, code)
}

func replyCodeReissued(code string, wasVerified bool) string {
	if wasVerified {
		return fmt.Sprintf(replySessionOver, code)
	}
	return fmt.Sprintf(replyCodeExpired, code)
}

func replyMismatch(remaining int) string {
	if remaining == 1 {
		return "Código incorrecto. Te queda 1 intento."
	}
	return fmt.Sprintf("Código incorrecto. Te quedan %d intentos.", remaining)
}

// tenantMenu renders the numbered selection prompt in membership order,
// the same order the session stored as pending tenants.
func tenantMenu(memberships []identity.Membership) string {
	var b strings.Builder
	b.WriteString("Elige la empresa respondiendo con el número:")
	for i, m := range memberships {
		b.WriteString(fmt.Sprintf("\n%d) %s", i+1, tenantLabel(m.TenantID, m.TenantName)))
	}
	return b.String()
}

func tenantLabel(id int64, name string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return fmt.Sprintf("empresa %d", id)
}

// tenantName resolves the display label for a selected tenant from the
// current memberships.
func tenantName(memberships []identity.Membership, tenantID int64) string {
	for _, m := range memberships {
		if m.TenantID == tenantID {
			return tenantLabel(m.TenantID, m.TenantName)
		}
	}
	return tenantLabel(tenantID, "")
}
