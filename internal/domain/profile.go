package domain

import (
	"fmt"
	"strings"
)

// Profile builds the external tool's argument vector for one media type.
// The set of profiles is closed: HLS, DASH and direct transfers each get
// their own builder.
type Profile interface {
	MediaType() MediaType
	BuildArgs(params *StartParams) []string
	Validate(params *StartParams) error
}

// ProfileFor returns the builder for a media type
func ProfileFor(mt MediaType) (Profile, error) {
	switch mt {
	case MediaHLS:
		return HLSProfile{}, nil
	case MediaDASH:
		return DASHProfile{}, nil
	case MediaDirect:
		return DirectProfile{}, nil
	default:
		return nil, fmt.Errorf("unsupported media type: %s", mt)
	}
}

// baseArgs are common to every profile: overwrite without prompting, keep the
// banner out of the telemetry stream, and surface repeated diagnostics.
func baseArgs(params *StartParams) []string {
	args := []string{"-hide_banner", "-y", "-stats"}
	for _, h := range params.Headers {
		args = append(args, "-headers", h)
	}
	return args
}

// HLSProfile builds arguments for segmented HTTP live streaming sources
type HLSProfile struct{}

func (HLSProfile) MediaType() MediaType { return MediaHLS }

func (HLSProfile) Validate(params *StartParams) error {
	return validateCommon(params)
}

func (HLSProfile) BuildArgs(params *StartParams) []string {
	args := baseArgs(params)
	args = append(args,
		"-i", params.URL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
	)
	if strings.HasSuffix(strings.ToLower(params.OutputPath), ".mp4") {
		args = append(args, "-movflags", "+faststart")
	}
	args = append(args, params.ExtraArgs...)
	args = append(args, params.OutputPath)
	return args
}

// DASHProfile builds arguments for MPEG-DASH manifests
type DASHProfile struct{}

func (DASHProfile) MediaType() MediaType { return MediaDASH }

func (DASHProfile) Validate(params *StartParams) error {
	return validateCommon(params)
}

func (DASHProfile) BuildArgs(params *StartParams) []string {
	args := baseArgs(params)
	args = append(args,
		"-i", params.URL,
		"-c", "copy",
		"-movflags", "+faststart",
	)
	args = append(args, params.ExtraArgs...)
	args = append(args, params.OutputPath)
	return args
}

// DirectProfile builds arguments for single-file progressive sources
type DirectProfile struct{}

func (DirectProfile) MediaType() MediaType { return MediaDirect }

func (DirectProfile) Validate(params *StartParams) error {
	return validateCommon(params)
}

func (DirectProfile) BuildArgs(params *StartParams) []string {
	args := baseArgs(params)
	args = append(args,
		"-i", params.URL,
		"-c", "copy",
	)
	args = append(args, params.ExtraArgs...)
	args = append(args, params.OutputPath)
	return args
}

func validateCommon(params *StartParams) error {
	if params.SessionID == "" {
		return fmt.Errorf("missing session id")
	}
	if params.URL == "" {
		return fmt.Errorf("missing source url")
	}
	if params.OutputPath == "" {
		return fmt.Errorf("missing output path")
	}
	return nil
}
