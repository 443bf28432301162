package gst

import "github.com/EchoPBX/trackbus-gateway/pkg/sdk"

// ConvertTimings renames the bus timing fields to the ones gtag expects.
func ConvertTimings(t sdk.Timing) sdk.TimingView {
	return sdk.TimingView{
		Name:     t.TimingVar,
		Value:    t.TimingValue,
		Category: t.TimingCategory,
		Label:    t.TimingLabel,
	}
}
