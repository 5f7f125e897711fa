package models

import "time"

// TimeLayout is the timestamp format used in every table cell holding a time.
const TimeLayout = "2006-01-02 15:04:05"

// Promo table column names (sheet header row).
const (
	ColUserID          = "UserID"
	ColUsername        = "Username"
	ColPromoCode       = "PromoCode"
	ColDateIssued      = "DateIssued"
	ColDateRedeemed    = "DateRedeemed"
	ColRedeemedBy      = "RedeemedBy"
	ColSource          = "Source"
	ColSubscribedSince = "SubscribedSince"
	ColDiscount        = "Discount"
	ColUnsubscribedAt  = "UnsubscribedAt"
	ColLastClickAt     = "LastClickAt"
)

// PromoColumns is the full header of the promo table, in bootstrap order.
var PromoColumns = []string{
	ColUserID, ColUsername, ColPromoCode, ColDateIssued, ColDateRedeemed,
	ColRedeemedBy, ColSource, ColSubscribedSince, ColDiscount,
	ColUnsubscribedAt, ColLastClickAt,
}

// Feedback table column names.
const (
	ColRating = "Rating"
	ColText   = "Text"
	ColPhotos = "Photos"
	ColDate   = "Date"
)

// FeedbackColumns is the full header of the feedback table.
var FeedbackColumns = []string{
	ColUserID, ColUsername, ColRating, ColText, ColPhotos, ColDate,
}

// PromoRecord is one row of the promo table: one row per user who has ever
// touched the subscription flow. Zero time values mean the cell is empty.
type PromoRecord struct {
	UserID          int64
	Username        string
	PromoCode       string
	DateIssued      time.Time
	DateRedeemed    time.Time
	RedeemedBy      string
	Source          string
	SubscribedSince time.Time
	Discount        string
	UnsubscribedAt  time.Time
	LastClickAt     time.Time
}

// Issued reports whether a code has been assigned to this record.
func (r PromoRecord) Issued() bool { return r.PromoCode != "" }

// Redeemed reports whether the code has been used. Presence of DateRedeemed
// is the sole redemption marker.
func (r PromoRecord) Redeemed() bool { return !r.DateRedeemed.IsZero() }

// Feedback is one append-only row of the feedback table.
type Feedback struct {
	UserID   int64
	Username string
	Rating   int
	Text     string
	Photos   []string
	Date     time.Time
}

// SourceStat aggregates per-source subscribe/unsubscribe activity within a
// reporting window.
type SourceStat struct {
	Source       string
	Subscribed   int
	Unsubscribed int
	Issued       int
	Redeemed     int
}
