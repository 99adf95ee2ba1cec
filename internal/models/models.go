package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// DefaultSubscriptionID names the subscription that can never be removed.
// Clients of a deleted subscription fall back to it.
const DefaultSubscriptionID = "default"

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"passwordHash,omitempty"`
	Role         Role       `json:"role"`
	IsMainAdmin  bool       `json:"isMainAdmin"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// Public returns a copy of the user that is safe to hand to callers.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) IsClient() bool {
	return u != nil && u.Role == RoleClient
}

type ClientStatus string

const (
	ClientActive   ClientStatus = "Active"
	ClientInactive ClientStatus = "Inactive"
)

type Client struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Email          string       `json:"email"`
	Phone          string       `json:"phone"`
	Status         ClientStatus `json:"status"`
	SubscriptionID string       `json:"subscriptionId"`
	OwnerID        string       `json:"ownerId"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      *time.Time   `json:"updatedAt,omitempty"`
}

// ClientSummary is a client as shown to an admin, with recommendation
// counters derived from the recommendation collection at read time.
type ClientSummary struct {
	Client
	RecommendationsAssigned     int  `json:"recommendationsAssigned"`
	RecommendationsAcknowledged int  `json:"recommendationsAcknowledged"`
	HasAccess                   bool `json:"hasAccess"`
}

type AccessRequestStatus string

const (
	AccessPending  AccessRequestStatus = "pending"
	AccessApproved AccessRequestStatus = "approved"
	AccessRejected AccessRequestStatus = "rejected"
)

func (s AccessRequestStatus) Valid() bool {
	switch s {
	case AccessPending, AccessApproved, AccessRejected:
		return true
	}
	return false
}

type AccessRequest struct {
	ID            string              `json:"id"`
	RequesterID   string              `json:"requesterId"`
	RequesterName string              `json:"requesterName"`
	ClientID      string              `json:"clientId"`
	ClientName    string              `json:"clientName"`
	Status        AccessRequestStatus `json:"status"`
	RequestDate   time.Time           `json:"requestDate"`
	ResolvedAt    *time.Time          `json:"resolvedAt,omitempty"`
	ResolvedBy    string              `json:"resolvedBy,omitempty"`
}

type Segment string

const (
	SegmentEquity    Segment = "Equity"
	SegmentFutures   Segment = "Futures"
	SegmentOptions   Segment = "Options"
	SegmentCommodity Segment = "Commodity"
	SegmentCurrency  Segment = "Currency"
	SegmentStock     Segment = "Stock"
)

var segments = []Segment{
	SegmentEquity, SegmentFutures, SegmentOptions,
	SegmentCommodity, SegmentCurrency, SegmentStock,
}

// ParseSegment matches a segment name case-insensitively. An empty name
// yields SegmentStock.
func ParseSegment(name string) (Segment, bool) {
	if strings.TrimSpace(name) == "" {
		return SegmentStock, true
	}
	for _, s := range segments {
		if strings.EqualFold(string(s), strings.TrimSpace(name)) {
			return s, true
		}
	}
	return "", false
}

type OptionType string

const (
	OptionCall OptionType = "CE"
	OptionPut  OptionType = "PE"
)

type RecommendationStatus string

const (
	RecommendationActive RecommendationStatus = "Active"
	RecommendationClosed RecommendationStatus = "Closed"
)

func (s RecommendationStatus) Valid() bool {
	switch s {
	case RecommendationActive, RecommendationClosed:
		return true
	}
	return false
}

// Timeframes label targets by position. Targets past the last label reuse it.
var Timeframes = []string{"Short-term", "Medium-term", "Long-term"}

type Target struct {
	ID        string          `json:"id"`
	Price     decimal.Decimal `json:"price"`
	Timeframe string          `json:"timeframe"`
}

type Recommendation struct {
	ID                  string               `json:"id"`
	Title               string               `json:"title"`
	Type                Segment              `json:"type"`
	Description         string               `json:"description"`
	Instrument          string               `json:"instrument,omitempty"`
	StrikePrice         *decimal.Decimal     `json:"strikePrice,omitempty"`
	OptionType          OptionType           `json:"optionType,omitempty"`
	EntryPrice          decimal.Decimal      `json:"entryPrice"`
	StopLoss            decimal.Decimal      `json:"stopLoss"`
	Targets             []Target             `json:"targets"`
	Status              RecommendationStatus `json:"status"`
	CreatedBy           string               `json:"createdBy"`
	CreatedAt           time.Time            `json:"createdAt"`
	LastUpdated         *time.Time           `json:"lastUpdated,omitempty"`
	SubscriptionIDs     []string             `json:"subscriptionIds"`
	ClientsAssigned     []string             `json:"clientsAssigned"`
	ClientsAcknowledged []string             `json:"clientsAcknowledged"`
}

func (r *Recommendation) IsAssigned(clientID string) bool {
	return contains(r.ClientsAssigned, clientID)
}

func (r *Recommendation) IsAcknowledgedBy(clientID string) bool {
	return contains(r.ClientsAcknowledged, clientID)
}

type Subscription struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
