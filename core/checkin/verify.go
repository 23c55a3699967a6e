package checkin

import (
	"crypto/subtle"
	"errors"
)

var (
	// ErrVerificationFailed means the submission did not satisfy the task's
	// verification rule. The task was legitimately open; nothing is persisted.
	ErrVerificationFailed = errors.New("check-in verification failed")
	// ErrUnknownModality means the task is configured with a modality no
	// verifier exists for. A configuration error, not a verification failure.
	ErrUnknownModality = errors.New("unsupported verification modality")
)

type verifier func(params VerifyParams, sub CheckIn) error

// verifiers is the closed dispatch table; an unlisted modality fails closed
// with ErrUnknownModality.
var verifiers = map[Modality]verifier{
	ModalityCode:     verifyCode,
	ModalityLocation: verifyLocation,
	ModalityWifi:     verifyWifi,
	ModalityManual:   verifyManual,
}

func verify(t Task, sub CheckIn) error {
	vf, ok := verifiers[t.Modality]
	if !ok {
		return ErrUnknownModality
	}
	return vf(t.Params, sub)
}

func verifyCode(params VerifyParams, sub CheckIn) error {
	if params.Secret == "" || sub.Code == "" {
		return ErrVerificationFailed
	}
	if subtle.ConstantTimeCompare([]byte(params.Secret), []byte(sub.Code)) == 0 {
		return ErrVerificationFailed
	}
	return nil
}

func verifyLocation(params VerifyParams, sub CheckIn) error {
	if sub.Lat == nil || sub.Lng == nil {
		return ErrVerificationFailed
	}
	if Distance(params.Lat, params.Lng, *sub.Lat, *sub.Lng) > params.Radius {
		return ErrVerificationFailed
	}
	return nil
}

func verifyWifi(params VerifyParams, sub CheckIn) error {
	if params.SSID == "" || params.BSSID == "" {
		return ErrVerificationFailed
	}
	if sub.SSID != params.SSID || sub.BSSID != params.BSSID {
		return ErrVerificationFailed
	}
	return nil
}

// verifyManual always passes: a teacher is recording attendance directly and
// authorization was checked upstream.
func verifyManual(VerifyParams, CheckIn) error {
	return nil
}
