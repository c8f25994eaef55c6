package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
	report_resty_inflight = "resty.inflight"
)

type restyHooks struct {
	tel      API
	inflight *int64
}

// InstrumentResty reports every exchange made by the client to tel. Error statuses and
// transport failures are warnings, whoever made the request decides whether it broke anything.
func InstrumentResty(client *resty.Client, tel API) {
	h := restyHooks{tel: tel, inflight: new(int64)}

	client.OnBeforeRequest(h.before)
	client.OnAfterResponse(h.after)
	client.OnError(h.failed)
}

func (h restyHooks) before(_ *resty.Client, req *resty.Request) error {
	n := atomic.AddInt64(h.inflight, 1)
	h.tel.ReportDebug(report_resty_request, req.Method, req.URL)
	h.tel.ReportCount(report_resty_inflight, n)
	return nil
}

func (h restyHooks) after(_ *resty.Client, res *resty.Response) error {
	n := atomic.AddInt64(h.inflight, -1)
	h.tel.ReportCount(report_resty_inflight, n)

	if res.IsError() {
		h.tel.ReportWarning(report_resty_response, res.Request.Method, res.Request.URL, res.Status(), res.Time())
		return nil
	}
	h.tel.ReportDebug(report_resty_response, res.Request.URL, res.Status(), res.Time())
	return nil
}

func (h restyHooks) failed(req *resty.Request, err error) {
	n := atomic.AddInt64(h.inflight, -1)
	h.tel.ReportCount(report_resty_inflight, n)

	var elapsed time.Duration
	if !req.Time.IsZero() {
		elapsed = time.Since(req.Time)
	}
	h.tel.ReportWarning(report_resty_response, err, req.Method, req.URL, elapsed)
}
