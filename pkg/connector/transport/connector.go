package transport

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fincore/gateway/pkg/clients"
	"github.com/fincore/gateway/pkg/config"
	"github.com/fincore/gateway/pkg/connector/base"
	"github.com/fincore/gateway/pkg/errors"
	"github.com/fincore/gateway/pkg/models"
	"github.com/fincore/gateway/pkg/oplog"
)

// envelopeKeys are the object keys a list response may be wrapped in, in
// lookup order. "value" is the OData convention used by Dynamics.
var envelopeKeys = []string{"data", "records", "items", "value"}

// Connector is a REST transport connector for one domain and vendor.
type Connector struct {
	*base.Connector
	domain Domain
	vendor Vendor
	driver *driver
}

// NewConnector creates a connector for domain. The vendor is selected by the
// domain's type field.
func NewConnector(domain Domain, name string, cfg config.Values, rec *oplog.Recorder) *Connector {
	if cfg == nil {
		cfg = config.Values{}
	}
	configured := strings.ToLower(cfg.String(domain.TypeField, Generic))
	vendor := domain.Vendor(configured)

	d := &driver{
		domain:     domain,
		vendor:     vendor,
		configured: configured,
		cfg:        cfg,
		sandbox:    cfg.Bool("sandbox", false),
		newClient:  clients.NewClient,
	}
	c := &Connector{
		Connector: base.New(base.Options{
			Name:        name,
			DefaultName: domain.DefaultName,
			Type:        domain.Type,
			Display:     vendor.Display,
			Required:    domain.Required(),
			Config:      cfg,
			Recorder:    rec,
		}, d),
		domain: domain,
		vendor: vendor,
		driver: d,
	}
	d.logger = c.Logger()

	if vendor.Key == Generic && configured != Generic {
		d.logger.Warn("unknown vendor, using generic strategy",
			zap.String(domain.TypeField, configured))
	}
	return c
}

// NewCRMConnector creates a CRM connector.
func NewCRMConnector(name string, cfg config.Values, rec *oplog.Recorder) *Connector {
	return NewConnector(CRM, name, cfg, rec)
}

// NewPMConnector creates a project management connector.
func NewPMConnector(name string, cfg config.Values, rec *oplog.Recorder) *Connector {
	return NewConnector(PM, name, cfg, rec)
}

// NewBankingConnector creates a bank API connector.
func NewBankingConnector(name string, cfg config.Values, rec *oplog.Recorder) *Connector {
	return NewConnector(Banking, name, cfg, rec)
}

// NewERPConnector creates an ERP connector.
func NewERPConnector(name string, cfg config.Values, rec *oplog.Recorder) *Connector {
	return NewConnector(ERP, name, cfg, rec)
}

// Domain returns the connector's domain.
func (c *Connector) Domain() Domain { return c.domain }

// Vendor returns the key of the strategy in use, "generic" for unknown vendors.
func (c *Connector) Vendor() string { return c.vendor.Key }

// Sandbox reports whether the connector serves fixtures instead of calling the API.
func (c *Connector) Sandbox() bool { return c.driver.sandbox }

type clientFactory func(cfg *clients.Config) (*clients.Client, error)

type driver struct {
	domain     Domain
	vendor     Vendor
	configured string
	cfg        config.Values
	sandbox    bool
	newClient  clientFactory
	client     *clients.Client
	logger     *zap.Logger
}

func (d *driver) Open(context.Context) (string, error) {
	if d.sandbox {
		return "", nil
	}
	client, err := d.newClient(clients.ConfigFromValues(d.cfg))
	if err != nil {
		return "", err
	}
	d.client = client
	d.logger.Info("API client ready", zap.String("base_url", client.BaseURL()))
	return "", nil
}

func (d *driver) Close(context.Context) error {
	if d.client != nil {
		d.client.Close()
		d.client = nil
	}
	return nil
}

func (d *driver) Probe(ctx context.Context) (string, error) {
	msg := fmt.Sprintf("%s %s connection test successful", d.configured, d.domain.Label)
	if d.sandbox {
		return msg, nil
	}
	code, err := d.client.Status(ctx, d.vendor.HealthPath)
	if err != nil {
		return "", err
	}
	if code >= 400 {
		return "", errors.Newf(errors.ErrorTypeConnection, "%s %s connection test failed: HTTP %d",
			d.configured, d.domain.Label, code).WithDetail("status_code", code)
	}
	return msg, nil
}

func (d *driver) Pull(ctx context.Context, dataType string, filters map[string]any) (base.Batch, error) {
	resource := d.vendor.Resource(dataType)
	details := map[string]any{"vendor": d.vendor.Key, "resource": resource}

	if d.sandbox {
		var records []models.Record
		if d.vendor.Fixtures != nil {
			records = d.vendor.Fixtures(dataType, config.Values(filters))
		}
		details["sandbox"] = true
		return base.Batch{Records: records, Details: details}, nil
	}

	var body any
	if err := d.client.GetJSON(ctx, resource, QueryFrom(filters), &body); err != nil {
		return base.Batch{}, err
	}
	records, err := Unwrap(body)
	if err != nil {
		return base.Batch{}, err
	}
	return base.Batch{Records: records, Details: details}, nil
}

func (d *driver) Push(ctx context.Context, payload models.Record, dataType string) (base.Receipt, error) {
	msg := fmt.Sprintf("Data sent to %s successfully", d.configured)

	if d.sandbox {
		receipt := d.vendor.Receipt
		if receipt == nil {
			receipt = sandboxReceipt
		}
		return base.Receipt{Message: msg, Details: receipt(dataType, payload)}, nil
	}

	var body any
	if err := d.client.PostJSON(ctx, d.vendor.Resource(dataType), payload, &body); err != nil {
		return base.Receipt{}, err
	}
	details := map[string]any{}
	switch t := body.(type) {
	case nil:
	case map[string]any:
		details = t
		// unwrap {data: {...}} acknowledgements
		if inner, ok := t["data"].(map[string]any); ok {
			details = inner
		}
	default:
		details["response"] = t
	}
	return base.Receipt{Message: msg, Details: details}, nil
}

// Unwrap normalizes a decoded response body into records. Bodies may be an
// array, an object wrapping an array or object under data, records, items or
// value, or a single object. Anything that is not an object is rejected.
func Unwrap(body any) ([]models.Record, error) {
	switch t := body.(type) {
	case nil:
		return []models.Record{}, nil
	case []any:
		return toRecords(t)
	case map[string]any:
		for _, key := range envelopeKeys {
			switch inner := t[key].(type) {
			case []any:
				return toRecords(inner)
			case map[string]any:
				return []models.Record{models.Record(inner)}, nil
			}
		}
		return []models.Record{models.Record(t)}, nil
	}
	return nil, errors.Newf(errors.ErrorTypeTransformation, "unexpected response body of type %T", body)
}

func toRecords(items []any) ([]models.Record, error) {
	out := make([]models.Record, 0, len(items))
	for i, item := range items {
		r, ok := models.AsRecord(item)
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeTransformation, "response item %d is not an object (%T)", i, item)
		}
		out = append(out, r)
	}
	return out, nil
}

// QueryFrom renders filters as query parameters. Slices become repeated
// parameters and nil values are dropped.
func QueryFrom(filters map[string]any) url.Values {
	if len(filters) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := url.Values{}
	for _, k := range keys {
		switch v := filters[k].(type) {
		case nil:
		case []string:
			for _, s := range v {
				q.Add(k, s)
			}
		case []any:
			for _, item := range v {
				q.Add(k, fmt.Sprint(item))
			}
		default:
			q.Add(k, fmt.Sprint(v))
		}
	}
	return q
}
