package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"indiclient/pkg/indi"
	"indiclient/pkg/notify"
)

// Standard CCD parameter names.
const (
	exposureParam   = "CCD_EXPOSURE"
	exposureElement = "CCD_EXPOSURE_VALUE"
	abortParam      = "CCD_ABORT_EXPOSURE"
	abortElement    = "ABORT"
	imageParam      = "CCD1"
)

// countdownSlack is how far the device's reported remaining exposure may run
// ahead of the wall clock before the countdown is considered inconsistent,
// meaning some other client restarted or retargeted the exposure.
const countdownSlack = 1100 * time.Millisecond

// ErrExposureClobbered is returned when the exposure countdown jumps in a way
// that indicates the capture no longer belongs to this request.
var ErrExposureClobbered = errors.New("client: exposure countdown inconsistent")

// ErrBlobMissing is returned when an image parameter update carries no
// payload data.
var ErrBlobMissing = errors.New("client: no blob payload")

// CaptureBlob runs one exposure and returns the resulting image payload.
//
// The saga enables blob delivery, records the image parameter's generation,
// triggers the exposure, and follows the device's countdown. A countdown that
// runs ahead of the wall clock beyond the allowed slack means another client
// took over the camera; the capture fails rather than returning someone
// else's frame. When the context is canceled mid-exposure an abort request is
// sent so the camera does not finish a pointless exposure. The returned blob
// is the first image update whose generation postdates the trigger.
func (d *ActiveDevice) CaptureBlob(ctx context.Context, exposure time.Duration) (indi.Blob, error) {
	if err := d.EnableBlob(ctx, indi.BlobAlso); err != nil {
		return indi.Blob{}, err
	}
	image, err := d.Parameter(ctx, imageParam)
	if err != nil {
		return indi.Blob{}, err
	}
	preGen := image.Get().Meta().Gen

	imageSub := image.Changes()
	defer imageSub.Unsubscribe()

	if err := d.runExposure(ctx, exposure); err != nil {
		return indi.Blob{}, err
	}

	return notify.WaitFn(ctx, imageSub, d.blobTimeout(image),
		func(param indi.Parameter) (indi.Blob, bool, error) {
			if param.Meta().Gen <= preGen {
				return indi.Blob{}, false, nil
			}
			vec, ok := param.(*indi.BlobVector)
			if !ok {
				return indi.Blob{}, false, indi.ErrTypeMismatch
			}
			for _, blob := range vec.Values {
				if blob.Value != nil {
					return blob, true, nil
				}
			}
			return indi.Blob{}, false, fmt.Errorf("%w: %s.%s",
				ErrBlobMissing, d.name, imageParam)
		})
}

// runExposure triggers the exposure and follows the countdown until the
// device reports it finished.
func (d *ActiveDevice) runExposure(ctx context.Context, exposure time.Duration) (err error) {
	expose, err := d.Parameter(ctx, exposureParam)
	if err != nil {
		return err
	}

	sub := expose.Changes()
	defer sub.Unsubscribe()

	defer func() {
		if err != nil {
			d.abortExposure()
		}
	}()

	seconds := exposure.Seconds()
	if err := expose.Set(Floats(map[string]float64{exposureElement: seconds})); err != nil {
		return err
	}

	deadline := time.Now().Add(exposure)
	_, err = notify.WaitFn(ctx, sub, exposure+minChangeTimeout,
		func(param indi.Parameter) (struct{}, bool, error) {
			vec, ok := param.(*indi.NumberVector)
			if !ok {
				return struct{}{}, false, indi.ErrTypeMismatch
			}
			if param.Meta().State == indi.StateAlert {
				return struct{}{}, false, fmt.Errorf("%w: %s.%s",
					ErrRejected, d.name, exposureParam)
			}
			value, ok := vec.Values[exposureElement]
			if !ok {
				return struct{}{}, false, fmt.Errorf("%w: %s.%s",
					ErrValueMissing, exposureParam, exposureElement)
			}
			remaining := time.Duration(value.Value.Value() * float64(time.Second))
			if remaining > time.Until(deadline)+countdownSlack {
				return struct{}{}, false, ErrExposureClobbered
			}
			done := remaining <= 0 && param.Meta().State != indi.StateBusy
			return struct{}{}, done, nil
		})
	return err
}

// abortExposure tells the camera to stop the current exposure. Sent on a
// best-effort basis while unwinding, so failures are only logged.
func (d *ActiveDevice) abortExposure() {
	cmd := SwitchValues{abortElement: indi.SwitchOn}.Command(d.name, abortParam)
	if err := d.client.Send(cmd); err != nil {
		d.client.log.WithError(err).WithField("device", d.name).
			Warn("Failed to abort exposure")
	}
}

func (d *ActiveDevice) blobTimeout(image *ActiveParameter) time.Duration {
	return max(time.Duration(image.Get().Meta().TimeoutSec())*time.Second, minChangeTimeout)
}
