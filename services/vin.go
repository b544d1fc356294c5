package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"kglogistics/utils"
)

// DecodedVehicle is what a VIN lookup yields.
type DecodedVehicle struct {
	VIN   string `json:"vin"`
	Year  string `json:"year"`
	Make  string `json:"make"`
	Model string `json:"model"`
}

// VINDecoder resolves a VIN to its vehicle.
type VINDecoder interface {
	Decode(ctx context.Context, vin string) (*DecodedVehicle, error)
}

type vpicResponse struct {
	Results []struct {
		ModelYear string `json:"ModelYear"`
		Make      string `json:"Make"`
		Model     string `json:"Model"`
	} `json:"Results"`
}

// NHTSADecoder queries the NHTSA vPIC DecodeVinValues endpoint.
type NHTSADecoder struct {
	client *resty.Client
}

func NewNHTSADecoder(baseURL string) *NHTSADecoder {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json")
	return &NHTSADecoder{client: client}
}

func (d *NHTSADecoder) Decode(ctx context.Context, vin string) (*DecodedVehicle, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if !utils.ValidVIN(vin) {
		return nil, NewError(KindValidation, "Invalid VIN format. VINs are 17 characters and cannot contain I, O or Q.")
	}

	var result vpicResponse
	resp, err := d.client.R().
		SetContext(ctx).
		// vPIC does not always label its JSON.
		ForceContentType("application/json").
		SetPathParam("vin", vin).
		SetQueryParam("format", "json").
		SetResult(&result).
		Get("/vehicles/DecodeVinValues/{vin}")
	if err != nil {
		return nil, WrapError(KindUpstream, "Failed to decode VIN. Please enter vehicle details manually.", err)
	}
	if resp.IsError() {
		return nil, WrapError(KindUpstream, "Failed to decode VIN. Please enter vehicle details manually.",
			fmt.Errorf("vPIC returned status %d", resp.StatusCode()))
	}

	if len(result.Results) == 0 || result.Results[0].Make == "" || result.Results[0].Model == "" {
		return nil, NewError(KindUpstream, "VIN not found in database. Please enter vehicle details manually.")
	}

	r := result.Results[0]
	return &DecodedVehicle{
		VIN:   vin,
		Year:  strings.TrimSpace(r.ModelYear),
		Make:  strings.TrimSpace(r.Make),
		Model: strings.TrimSpace(r.Model),
	}, nil
}
