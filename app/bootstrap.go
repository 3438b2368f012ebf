package app

import (
	"context"
	"log"
)

type AdminPromoter interface {
	PromoteAdmins(ctx context.Context, emails []string) (int64, error)
}

// BootstrapAdmins makes sure every user listed in ADMIN_EMAILS holds the
// admin role. Users that do not exist yet are picked up on a later start.
func BootstrapAdmins(ctx context.Context, cfg Config, repo AdminPromoter) {
	if len(cfg.AdminEmails) == 0 {
		return
	}
	n, err := repo.PromoteAdmins(ctx, cfg.AdminEmails)
	if err != nil {
		log.Printf("bootstrap: promote admins: %v", err)
		return
	}
	if n > 0 {
		log.Printf("bootstrap: promoted %d user(s) to admin", n)
	}
}
