package protocol

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/yndnr/thingvault/internal/core/domain"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		n       int
		want    []string
		wantErr bool
	}{
		{"two", "tvst_x,thing", 2, []string{"tvst_x", "thing"}, false},
		{"pattern with commas", "tvst_x,a{1,3}", 2, []string{"tvst_x", "a{1,3}"}, false},
		{"empty last", "tvst_x,", 2, []string{"tvst_x", ""}, false},
		{"too few", "tvst_x", 2, nil, true},
		{"one", "repo", 1, []string{"repo"}, false},
		{"zero", "x", 0, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitArgs(tt.in, tt.n)
			if tt.wantErr {
				if !errors.Is(err, ErrBadArguments) {
					t.Errorf("err = %v, want ErrBadArguments", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResponse_String(t *testing.T) {
	tests := []struct {
		resp *Response
		want string
	}{
		{OK(), "OK"},
		{OK("tvat_x"), "OK,tvat_x"},
		{OK("sig", "payload"), "OK,sig,payload"},
		{Error(domain.KindIncorrectAppToken, "incorrect app token"), "ERROR,3,incorrect app token"},
	}

	for _, tt := range tests {
		if got := tt.resp.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestResponse_EncodeDecode(t *testing.T) {
	for _, resp := range []*Response{
		OK(),
		OK("sig,payload"),
		Error(domain.KindThingNotFound, "thing not found: a, b"),
	} {
		got, err := DecodeResponse(resp.Encode())
		if err != nil {
			t.Fatalf("DecodeResponse() error = %v", err)
		}
		if !reflect.DeepEqual(got, resp) {
			t.Errorf("DecodeResponse() = %+v, want %+v", got, resp)
		}
	}
}

func TestParseResponse_Bad(t *testing.T) {
	for _, in := range []string{"", "MAYBE", "ERROR", "ERROR,x,msg"} {
		if _, err := ParseResponse(in); !errors.Is(err, ErrBadResponse) {
			t.Errorf("ParseResponse(%q) err = %v, want ErrBadResponse", in, err)
		}
	}
}

func TestFromError(t *testing.T) {
	r := FromError(domain.ErrThingNotFound.WithDetails("x"), domain.KindThingOperationFailed)
	if r.Code != domain.KindThingNotFound || r.Message != "thing not found: x" {
		t.Errorf("FromError() = %+v", r)
	}

	r = FromError(errors.New("disk"), domain.KindThingOperationFailed)
	if r.Code != domain.KindThingOperationFailed || r.Message != "disk" {
		t.Errorf("FromError() = %+v", r)
	}

	if !errors.Is(r.Err(), domain.ErrThingOperationFailed) {
		t.Errorf("Err() = %v, want ThingOperationFailed", r.Err())
	}
	if OK().Err() != nil {
		t.Error("OK().Err() should be nil")
	}
}

func TestTime(t *testing.T) {
	ts := time.Date(2025, 6, 7, 8, 9, 10, 123456000, time.FixedZone("X", 3600))

	got, err := DecodeTime(EncodeTime(ts))
	if err != nil {
		t.Fatalf("DecodeTime() error = %v", err)
	}
	if !got.Equal(ts) || got.Location() != time.UTC {
		t.Errorf("DecodeTime() = %v, want %v in UTC", got, ts)
	}

	fine := time.Date(2025, 6, 7, 8, 9, 10, 123456789, time.UTC)
	if got, _ := DecodeTime(EncodeTime(fine)); !got.Equal(fine.Truncate(time.Microsecond)) {
		t.Errorf("DecodeTime() = %v, want %v", got, fine.Truncate(time.Microsecond))
	}

	if _, err := DecodeTime("yesterday"); !errors.Is(err, ErrBadArguments) {
		t.Errorf("DecodeTime(yesterday) error = %v, want ErrBadArguments", err)
	}
}

func TestTime_Range(t *testing.T) {
	for _, ts := range []time.Time{
		domain.MinModifiedOn,
		domain.MaxModifiedOn,
		time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2500, 1, 1, 0, 0, 0, 0, time.UTC),
	} {
		got, err := DecodeTime(EncodeTime(ts))
		if err != nil || !got.Equal(ts) {
			t.Errorf("DecodeTime(EncodeTime(%v)) = %v, %v", ts, got, err)
		}
	}

	tooLate := time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := DecodeTime(EncodeTime(tooLate)); !errors.Is(err, domain.ErrModifiedOnOutOfRange) {
		t.Errorf("DecodeTime(year 10000) error = %v, want ErrModifiedOnOutOfRange", err)
	}
}

func TestIDs(t *testing.T) {
	got, err := SplitIDs("")
	if err != nil || got != nil {
		t.Errorf("SplitIDs(\"\") = %q, %v, want nil", got, err)
	}

	ids := []string{"a", "b c", "a|b", "50%", "zażółć", "x,y"}
	got, err = SplitIDs(JoinIDs(ids))
	if err != nil || !reflect.DeepEqual(got, ids) {
		t.Errorf("SplitIDs(JoinIDs()) = %q, %v, want %q", got, err, ids)
	}

	if _, err := SplitIDs("ok|%zz"); !errors.Is(err, ErrBadArguments) {
		t.Errorf("SplitIDs(bad escape) error = %v, want ErrBadArguments", err)
	}
}

func TestThing(t *testing.T) {
	ts := time.UnixMicro(1700000000000005).UTC()
	data := []byte("ala ma kota, i psa \x00\xff")

	gotTS, gotData, err := DecodeThing(EncodeThing(ts, data))
	if err != nil {
		t.Fatalf("DecodeThing() error = %v", err)
	}
	if !gotTS.Equal(ts) || string(gotData) != string(data) {
		t.Errorf("DecodeThing() = (%v, %q)", gotTS, gotData)
	}

	for _, in := range []string{"nocomma", "x,AAAA", "1,***"} {
		if _, _, err := DecodeThing(in); err == nil {
			t.Errorf("DecodeThing(%q) should fail", in)
		}
	}
}

func TestYesNo(t *testing.T) {
	if YesNo(true) != Yes || YesNo(false) != No {
		t.Error("YesNo mismatch")
	}
}
