package models

import "time"

// TokenType is the roaming-protocol token type.
type TokenType string

const (
	TokenAdHocUser TokenType = "AD_HOC_USER"
	TokenAppUser   TokenType = "APP_USER"
	TokenOther     TokenType = "OTHER"
	TokenRFID      TokenType = "RFID"
)

// IDTokenType is the station-side identifier type.
type IDTokenType string

const (
	IDTokenCentral         IDTokenType = "Central"
	IDTokenEMAID           IDTokenType = "eMAID"
	IDTokenISO14443        IDTokenType = "ISO14443"
	IDTokenISO15693        IDTokenType = "ISO15693"
	IDTokenKeyCode         IDTokenType = "KeyCode"
	IDTokenLocal           IDTokenType = "Local"
	IDTokenMacAddress      IDTokenType = "MacAddress"
	IDTokenNoAuthorization IDTokenType = "NoAuthorization"
)

type WhitelistType string

const (
	WhitelistAlways         WhitelistType = "ALWAYS"
	WhitelistAllowed        WhitelistType = "ALLOWED"
	WhitelistAllowedOffline WhitelistType = "ALLOWED_OFFLINE"
	WhitelistNever          WhitelistType = "NEVER"
)

const (
	AuthorizationAccepted = "Accepted"
	AuthorizationBlocked  = "Blocked"
	AuthorizationInvalid  = "Invalid"
)

// Token is the external identity pushed by an eMSP.
type Token struct {
	CountryCode  string        `json:"country_code"`
	PartyID      string        `json:"party_id"`
	UID          string        `json:"uid"`
	Type         TokenType     `json:"type"`
	ContractID   string        `json:"contract_id"`
	VisualNumber string        `json:"visual_number,omitempty"`
	Issuer       string        `json:"issuer"`
	GroupID      string        `json:"group_id,omitempty"`
	Valid        bool          `json:"valid"`
	Whitelist    WhitelistType `json:"whitelist"`
	Language     string        `json:"language,omitempty"`
	LastUpdated  time.Time     `json:"last_updated"`
}

// TokenPatch carries the fields of a partial token update.
type TokenPatch struct {
	ContractID   *string        `json:"contract_id,omitempty"`
	VisualNumber *string        `json:"visual_number,omitempty"`
	Issuer       *string        `json:"issuer,omitempty"`
	GroupID      *string        `json:"group_id,omitempty"`
	Valid        *bool          `json:"valid,omitempty"`
	Whitelist    *WhitelistType `json:"whitelist,omitempty"`
	Language     *string        `json:"language,omitempty"`
	LastUpdated  *time.Time     `json:"last_updated,omitempty"`
}

type AdditionalInfo struct {
	AdditionalIDToken string `json:"additionalIdToken"`
	Type              string `json:"type"`
}

// ExternalToken keeps the token exactly as the partner sent it, so that
// responses can echo the original uid after normalization.
type ExternalToken struct {
	UID          string        `json:"uid"`
	Type         TokenType     `json:"type"`
	CountryCode  string        `json:"country_code"`
	PartyID      string        `json:"party_id"`
	ContractID   string        `json:"contract_id"`
	VisualNumber string        `json:"visual_number,omitempty"`
	Issuer       string        `json:"issuer"`
	Language     string        `json:"language,omitempty"`
	Valid        bool          `json:"valid"`
	Whitelist    WhitelistType `json:"whitelist"`
}

type Authorization struct {
	ID                   int
	IDToken              string
	IDTokenType          IDTokenType
	Status               string
	AdditionalInfo       []AdditionalInfo
	Whitelist            WhitelistType
	Language             string
	GroupID              *string
	GroupAuthorizationID *int
	PartnerID            *int
	ExternalToken        *ExternalToken
	UpdatedAt            time.Time
}
