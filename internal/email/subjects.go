package email

const (
	subjectLeadNotificationFmt = "New lead for %s — %s in %s"
	subjectPendingDigestFmt    = "%d undelivered leads need attention"
)
