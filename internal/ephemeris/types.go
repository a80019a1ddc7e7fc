// Package ephemeris is the websocket client for the remote swisseph
// computation service. It owns the request envelope format, the shape-based
// response decoder, and the ComputeChart orchestration that drives the
// astro.Assembler to completion.
package ephemeris

import (
	"encoding/json"
	"strconv"

	"github.com/astrohelm/natalchart/internal/astro"
	"github.com/astrohelm/natalchart/internal/domain"
)

// Envelope is the outbound message format. One envelope can carry several
// function calls, though this client always sends one per message.
type Envelope struct {
	Type string `json:"type"`
	Data []Call `json:"data"`
}

// Call is a single remote function invocation.
type Call struct {
	Func string `json:"func"`
	Args []any  `json:"args"`
}

const envelopeSwisseph = "swisseph"

// bodyRequest builds the position request for one body at the given UTC
// moment and observer location.
func bodyRequest(id domain.BodyID, fields astro.UTCFields, coord domain.GeoCoordinate) Envelope {
	arg := map[string]any{
		"date": map[string]any{
			"gregorian": map[string]any{
				"terrestrial": fields,
			},
		},
		"observer": map[string]any{
			"ephemeris": "swisseph",
			"geographic": map[string]any{
				"longitude": coord.Longitude,
				"latitude":  coord.Latitude,
				"height":    0,
			},
		},
		"body": map[string]any{
			"id":       int(id),
			"position": map[string]any{},
		},
	}
	return Envelope{
		Type: envelopeSwisseph,
		Data: []Call{{Func: "calc", Args: []any{arg}}},
	}
}

// julianDayRequest builds the swe_julday call. The trailing 1 selects the
// Gregorian calendar.
func julianDayRequest(fields astro.UTCFields) Envelope {
	return Envelope{
		Type: envelopeSwisseph,
		Data: []Call{{
			Func: "swe_julday",
			Args: []any{fields.Year, fields.Month, fields.Day, fields.Hour, 1},
		}},
	}
}

// housesRequest builds the swe_houses call. It requires the Julian day, so
// it can only be sent after the swe_julday response arrives.
func housesRequest(jd float64, coord domain.GeoCoordinate, houseSystem byte) Envelope {
	return Envelope{
		Type: envelopeSwisseph,
		Data: []Call{{
			Func: "swe_houses",
			Args: []any{jd, coord.Latitude, coord.Longitude, string(houseSystem)},
		}},
	}
}

// ---------------------------------------------------------------------------
// Response decoding
// ---------------------------------------------------------------------------

// Response is one decoded inbound message. The protocol does not tag
// responses with a correlating id, so DecodeResponse classifies by shape.
type Response interface{ isResponse() }

// JulianDayResponse is the answer to swe_julday: a bare number.
type JulianDayResponse struct {
	JD float64
}

// BodyResponse is one body-position answer.
type BodyResponse struct {
	Position domain.BodyPosition
}

// HousesResponse carries raw house cusps and the auxiliary ascmc array.
type HousesResponse struct {
	Cusps []float64
	Ascmc []float64
}

// UnrecognizedResponse is valid JSON that matched none of the known shapes.
// Callers count these rather than dropping them silently.
type UnrecognizedResponse struct{}

// ServiceErrorResponse is an explicit error reported by the service.
type ServiceErrorResponse struct {
	Message string
}

func (JulianDayResponse) isResponse()    {}
func (BodyResponse) isResponse()         {}
func (HousesResponse) isResponse()       {}
func (UnrecognizedResponse) isResponse() {}
func (ServiceErrorResponse) isResponse() {}

// flexID accepts a body id encoded as either a JSON number or a numeric
// string; the service has been observed to produce both.
type flexID struct {
	value int
	set   bool
}

func (f *flexID) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		f.value, f.set = n, true
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			f.value, f.set = n, true
		}
	}
	return nil
}

// flexDegree accepts a longitude encoded as either a bare number or an
// object carrying a decimalDegree field.
type flexDegree struct {
	value float64
	set   bool
}

func (f *flexDegree) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		f.value, f.set = n, true
		return nil
	}
	var obj struct {
		DecimalDegree *float64 `json:"decimalDegree"`
	}
	if err := json.Unmarshal(b, &obj); err == nil && obj.DecimalDegree != nil {
		f.value, f.set = *obj.DecimalDegree, true
	}
	return nil
}

// serverMessage is the outer shape of every inbound message.
type serverMessage struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// DecodeResponse classifies a raw inbound message. Decoding is attempted in
// a fixed priority order: scalar Julian day, then body position, then house
// data. Valid JSON matching none of them decodes as UnrecognizedResponse;
// malformed JSON is a ProtocolError.
func DecodeResponse(raw []byte) (Response, error) {
	var msg serverMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, &domain.ProtocolError{Reason: "unparseable message: " + err.Error()}
	}

	if msg.Error != "" {
		return ServiceErrorResponse{Message: msg.Error}, nil
	}
	if len(msg.Result) == 0 {
		return UnrecognizedResponse{}, nil
	}

	// 1. Bare numeric result: the Julian day.
	var jd float64
	if err := json.Unmarshal(msg.Result, &jd); err == nil {
		return JulianDayResponse{JD: jd}, nil
	}

	// 2. Body position: result.body.id + result.body.position.longitude.
	var body struct {
		Body *struct {
			ID       flexID `json:"id"`
			Position struct {
				Longitude flexDegree `json:"longitude"`
			} `json:"position"`
		} `json:"body"`
	}
	if err := json.Unmarshal(msg.Result, &body); err == nil &&
		body.Body != nil && body.Body.ID.set && body.Body.Position.Longitude.set {
		return BodyResponse{Position: domain.BodyPosition{
			Body:      domain.BodyID(body.Body.ID.value),
			Longitude: body.Body.Position.Longitude.value,
		}}, nil
	}

	// 3. House data: result.cusps (or its legacy alias result.house).
	var houses struct {
		Cusps []float64 `json:"cusps"`
		House []float64 `json:"house"`
		Ascmc []float64 `json:"ascmc"`
	}
	if err := json.Unmarshal(msg.Result, &houses); err == nil {
		cusps := houses.Cusps
		if len(cusps) == 0 {
			cusps = houses.House
		}
		if len(cusps) > 0 {
			return HousesResponse{Cusps: cusps, Ascmc: houses.Ascmc}, nil
		}
	}

	return UnrecognizedResponse{}, nil
}
