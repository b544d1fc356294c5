package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ContactStep is the first wizard step.
type ContactStep struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// VehicleStep is the second wizard step. VINDecoded marks year, make and
// model as filled from the VIN lookup.
type VehicleStep struct {
	VIN           string `json:"vin"`
	Year          string `json:"year"`
	Make          string `json:"make"`
	Model         string `json:"model"`
	TransportType string `json:"transportType"`
	VINDecoded    bool   `json:"vinDecoded"`
}

// AddressStep is the third wizard step. The *Formatted fields accept a
// single-line address that fills empty discrete fields.
type AddressStep struct {
	PickupDate       string `json:"pickupDate"`
	DropoffDate      string `json:"dropoffDate"`
	PickupAddress    string `json:"pickupAddress"`
	PickupCity       string `json:"pickupCity"`
	PickupState      string `json:"pickupState"`
	PickupZip        string `json:"pickupZip"`
	DropoffAddress   string `json:"dropoffAddress"`
	DropoffCity      string `json:"dropoffCity"`
	DropoffState     string `json:"dropoffState"`
	DropoffZip       string `json:"dropoffZip"`
	PickupFormatted  string `json:"pickupFormatted,omitempty"`
	DropoffFormatted string `json:"dropoffFormatted,omitempty"`
}

// QuoteDraft is the server-held state of one quote wizard session.
type QuoteDraft struct {
	ID        string       `json:"id"`
	Contact   *ContactStep `json:"contact"`
	Vehicle   *VehicleStep `json:"vehicle"`
	Address   *AddressStep `json:"address"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// DraftStore keeps drafts as JSON in a fiber.Storage under a key prefix.
// Every save renews the TTL.
type DraftStore struct {
	storage fiber.Storage
	ttl     time.Duration
}

const draftKeyPrefix = "quote_draft:"

func NewDraftStore(storage fiber.Storage, ttl time.Duration) *DraftStore {
	return &DraftStore{storage: storage, ttl: ttl}
}

func (d *DraftStore) New(now time.Time) (*QuoteDraft, error) {
	draft := &QuoteDraft{
		ID:        uuid.NewString(),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if err := d.Save(draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (d *DraftStore) Get(id string) (*QuoteDraft, error) {
	if err := checkID(id, "draft"); err != nil {
		return nil, err
	}
	raw, err := d.storage.Get(draftKeyPrefix + id)
	if err != nil {
		return nil, WrapError(KindUnexpected, "failed to load draft", err)
	}
	if raw == nil {
		return nil, NewError(KindNotFound, "draft not found or expired")
	}
	var draft QuoteDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, WrapError(KindUnexpected, "failed to decode draft", err)
	}
	return &draft, nil
}

func (d *DraftStore) Save(draft *QuoteDraft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return WrapError(KindUnexpected, "failed to encode draft", err)
	}
	if err := d.storage.Set(draftKeyPrefix+draft.ID, raw, d.ttl); err != nil {
		return WrapError(KindUnexpected, "failed to save draft", fmt.Errorf("storage: %w", err))
	}
	return nil
}

func (d *DraftStore) Delete(id string) error {
	return d.storage.Delete(draftKeyPrefix + id)
}
