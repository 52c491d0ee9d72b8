package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRequest(t *testing.T, p RequestParams) SearchRequest {
	t.Helper()
	req, err := NewSearchRequest(p, RequestLimits{})
	require.NoError(t, err)
	return req
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := mustRequest(t, RequestParams{Keywords: []string{"a1", "b1"}, Channels: []string{"c1", "c2"}})
	b := mustRequest(t, RequestParams{Keywords: []string{"b1", "a1"}, Channels: []string{"c2", "c1"}})

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint().String(), 64)
}

func TestFingerprint_NormalisedFields(t *testing.T) {
	a := mustRequest(t, RequestParams{Keywords: []string{"Alpha  Beta"}, Channels: []string{"@Chan_One"}})
	b := mustRequest(t, RequestParams{Keywords: []string{"alpha beta"}, Channels: []string{"https://t.me/chan_one/42"}})

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_UnnormalisedValueMatchesNormalised(t *testing.T) {
	norm := mustRequest(t, RequestParams{Keywords: []string{"alpha"}, Channels: []string{"c1"}})
	raw := SearchRequest{Keywords: []string{"ALPHA", "alpha"}, Channels: []string{"@C1"}, MaxResults: DefaultMaxResults}

	assert.Equal(t, norm.Fingerprint(), raw.Fingerprint())
}

func TestFingerprint_DistinguishesFields(t *testing.T) {
	base := RequestParams{Keywords: []string{"alpha"}, Channels: []string{"c1"}}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		modify func(p *RequestParams)
	}{
		{"keywords", func(p *RequestParams) { p.Keywords = []string{"beta"} }},
		{"channels", func(p *RequestParams) { p.Channels = []string{"c2"} }},
		{"window", func(p *RequestParams) { p.Window = LastWindow(now, time.Hour) }},
		{"max results", func(p *RequestParams) { p.MaxResults = 10 }},
	}

	want := mustRequest(t, base).Fingerprint()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.modify(&p)
			assert.NotEqual(t, want, mustRequest(t, p).Fingerprint())
		})
	}
}

func TestFingerprint_IgnoresRefreshAndRequester(t *testing.T) {
	a := mustRequest(t, RequestParams{Keywords: []string{"alpha"}, Channels: []string{"c1"}})
	b := mustRequest(t, RequestParams{
		Keywords: []string{"alpha"}, Channels: []string{"c1"},
		ForceRefresh: true, Requester: "42",
	})

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_WindowWithinSameMinute(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)
	a := mustRequest(t, RequestParams{Keywords: []string{"alpha"}, Channels: []string{"c1"}, Window: LastWindow(t0, 24*time.Hour)})
	b := mustRequest(t, RequestParams{Keywords: []string{"alpha"}, Channels: []string{"c1"}, Window: LastWindow(t0.Add(40*time.Second), 24*time.Hour)})

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestNewSearchRequest_Normalisation(t *testing.T) {
	req := mustRequest(t, RequestParams{
		Keywords:  []string{"  Beta ", "alpha", "x", "ALPHA", ""},
		Channels:  []string{"@c2", "t.me/c1", "", "C2"},
		Requester: " 1001 ",
	})

	assert.Equal(t, []string{"alpha", "beta"}, req.Keywords)
	assert.Equal(t, []string{"c1", "c2"}, req.Channels)
	assert.Equal(t, DefaultMaxResults, req.MaxResults)
	assert.Equal(t, "1001", req.Requester)
}

func TestNewSearchRequest_Caps(t *testing.T) {
	keywords := []string{"k01", "k02", "k03", "k04", "k05"}
	channels := []string{"c5", "c4", "c3", "c2", "c1"}

	req, err := NewSearchRequest(RequestParams{Keywords: keywords, Channels: channels},
		RequestLimits{MaxKeywords: 3, MaxChannels: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"k01", "k02", "k03"}, req.Keywords)
	assert.Equal(t, []string{"c4", "c5"}, req.Channels)
}

func TestNewSearchRequest_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		p     RequestParams
		field string
	}{
		{"no keywords", RequestParams{Channels: []string{"c1"}}, "keywords"},
		{"only short keywords", RequestParams{Keywords: []string{"a", " b "}, Channels: []string{"c1"}}, "keywords"},
		{"no channels", RequestParams{Keywords: []string{"alpha"}}, "channels"},
		{"bad channel", RequestParams{Keywords: []string{"alpha"}, Channels: []string{"bad channel!"}}, "channels"},
		{"negative max results", RequestParams{Keywords: []string{"alpha"}, Channels: []string{"c1"}, MaxResults: -1}, "max_results"},
		{"inverted window", RequestParams{
			Keywords: []string{"alpha"}, Channels: []string{"c1"},
			Window: TimeWindow{Start: time.Unix(2000, 0), End: time.Unix(1000, 0)},
		}, "window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSearchRequest(tt.p, RequestLimits{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestSearchRequest_ValidateZeroMaxResults(t *testing.T) {
	req := SearchRequest{Keywords: []string{"alpha"}, Channels: []string{"c1"}}
	assert.ErrorIs(t, req.Validate(), ErrInvalidRequest)
}

func TestNormalizeKeyword(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"Alpha", "alpha", true},
		{"  new\t york  ", "new york", true},
		{"a", "", false},
		{"  ", "", false},
		{"Ёж", "ёж", true},
		{strings.Repeat("я", 60), strings.Repeat("я", MaxKeywordLength), true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeKeyword(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimeWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 30, 15, 0, time.UTC)
	w := LastWindow(now, time.Hour).Normalize()

	assert.Equal(t, time.Date(2024, 5, 1, 11, 30, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 31, 0, 0, time.UTC), w.End)
	assert.True(t, w.Contains(now))
	assert.True(t, w.Older(now.Add(-2*time.Hour)))
	assert.True(t, w.Newer(now.Add(time.Hour)))
	assert.False(t, w.IsZero())

	var open TimeWindow
	assert.True(t, open.IsZero())
	assert.True(t, open.Contains(now))
	assert.Equal(t, "*..*", open.String())
}

func TestTimeWindow_NormalizeIsMinuteAligned(t *testing.T) {
	w := TimeWindow{
		Start: time.Date(2024, 5, 1, 12, 0, 30, 0, time.UTC),
		End:   time.Date(2024, 5, 1, 12, 1, 0, 0, time.UTC),
	}.Normalize()

	posted := time.Date(2024, 5, 1, 12, 0, 10, 0, time.UTC)
	assert.True(t, w.Contains(posted), "messages from earlier in the start minute are kept")
	assert.True(t, w.Older(posted.Add(-time.Minute)))
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"alpha", "beta gamma", "delta"}, ParseList("alpha, beta gamma,\n delta,,"))
	assert.Empty(t, ParseList(" , \n"))
}

func TestSearchRequest_Normalize(t *testing.T) {
	raw := SearchRequest{
		Keywords:   []string{"Beta", "ALPHA", "alpha"},
		Channels:   []string{"@C2", "t.me/c1"},
		MaxResults: 5,
	}

	req, err := raw.Normalize()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, req.Keywords)
	assert.Equal(t, []string{"c1", "c2"}, req.Channels)
	assert.Equal(t, raw.Fingerprint(), req.Fingerprint())

	_, err = SearchRequest{Keywords: []string{"alpha"}, Channels: []string{"c1"}}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = SearchRequest{Keywords: []string{"a"}, Channels: []string{"c1"}, MaxResults: 1}.Normalize()
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestParseLookback(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "90m", want: 90 * time.Minute},
		{in: " 24h ", want: 24 * time.Hour},
		{in: "7d", want: 7 * 24 * time.Hour},
		{in: "xd", wantErr: true},
		{in: "0d", wantErr: true},
		{in: "-1h", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLookback(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRequest)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
