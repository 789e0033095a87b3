// internal/app/lifecycle/notices.go
package lifecycle

import (
	"time"

	"github.com/dalemusser/memberhub/internal/app/system/mailer"
	"github.com/dalemusser/memberhub/internal/app/system/notify"
	"github.com/dalemusser/memberhub/internal/domain/feeschedule"
	"github.com/dalemusser/memberhub/internal/domain/models"
)

// notices renders member notifications into notify events.
type notices struct {
	siteName string
	schedule *feeschedule.Schedule
}

func (n *notices) event(kind notify.Kind, u models.User, e mailer.Email) notify.Event {
	ev := notify.NewEvent(kind, u.ID.Hex(), u.Email, u.Mobile)
	ev.Subject = e.Subject
	ev.TextBody = e.TextBody
	ev.HTMLBody = e.HTMLBody
	return ev
}

func (n *notices) credentials(u models.User, password string, renewal time.Time) notify.Event {
	return n.event(notify.KindCredentialsIssued, u, mailer.BuildCredentialsEmail(mailer.CredentialsEmailData{
		SiteName:    n.siteName,
		FullName:    u.FullName,
		Username:    u.Username,
		Password:    password,
		Tier:        string(u.MembershipTier),
		RenewalDate: renewal,
	}))
}

func (n *notices) renewed(u models.User, renewal time.Time) notify.Event {
	return n.event(notify.KindMembershipRenewed, u, mailer.BuildRenewedNotice(n.renewalData(u, renewal)))
}

func (n *notices) reminder(u models.User, due time.Time) notify.Event {
	return n.event(notify.KindRenewalReminder, u, mailer.BuildRenewalReminder(n.renewalData(u, due)))
}

func (n *notices) expired(u models.User, due time.Time) notify.Event {
	return n.event(notify.KindMembershipExpired, u, mailer.BuildExpiredNotice(n.renewalData(u, due)))
}

func (n *notices) renewalData(u models.User, date time.Time) mailer.RenewalEmailData {
	ft := n.schedule.RenewalFeeType(u.MembershipTier)
	amount, _ := n.schedule.Amount(u.MembershipTier, ft)
	return mailer.RenewalEmailData{
		SiteName:    n.siteName,
		FullName:    u.FullName,
		Tier:        string(u.MembershipTier),
		RenewalDate: date,
		AmountDue:   mailer.FormatAmount(amount, n.schedule.Currency()),
	}
}
