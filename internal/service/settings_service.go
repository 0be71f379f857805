// internal/service/settings_service.go
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"based-connect/internal/config"
	"based-connect/internal/driver"
	"based-connect/internal/model"
	"based-connect/internal/protocol"
	"based-connect/internal/utils"
	pkgdriver "based-connect/pkg/driver"
	"based-connect/pkg/settings"
)

// ProtocolFactory builds the transport for a target
type ProtocolFactory func(target protocol.Target, logger *zap.Logger) (protocol.DeviceProtocol, error)

// ApplyRequest is one invocation: a headset address and the settings to apply in order
type ApplyRequest struct {
	Address  string
	Brand    model.DeviceBrand
	Settings []settings.Setting
}

// ApplyReport records what happened to each requested change
type ApplyReport struct {
	OperationID uuid.UUID                 `json:"operation_id" yaml:"operation_id"`
	Device      model.Device              `json:"device" yaml:"device"`
	Connect     *model.SettingOperation   `json:"connect" yaml:"connect"`
	Operations  []*model.SettingOperation `json:"operations" yaml:"operations"`
	Applied     int                       `json:"applied" yaml:"applied"`
}

// Failed returns the operation that failed, or nil when none did
func (r *ApplyReport) Failed() *model.SettingOperation {
	if r.Connect != nil && r.Connect.Status == model.OperationStatusFailed {
		return r.Connect
	}
	for _, op := range r.Operations {
		if op.Status == model.OperationStatusFailed {
			return op
		}
	}
	return nil
}

// SettingsService opens the transport, runs the command session and closes the
// transport again, whatever the outcome
type SettingsService struct {
	config          *config.Config
	registry        *driver.Registry
	protocolFactory ProtocolFactory
	logger          *zap.Logger
}

// NewSettingsService creates a new settings service instance
func NewSettingsService(cfg *config.Config, registry *driver.Registry, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		config:          cfg,
		registry:        registry,
		protocolFactory: protocol.CreateProtocol,
		logger:          logger.With(zap.String("service", "settings"), zap.String("component", "service")),
	}
}

// WithProtocolFactory replaces the transport factory
func (s *SettingsService) WithProtocolFactory(factory ProtocolFactory) *SettingsService {
	s.protocolFactory = factory
	return s
}

// Target builds the transport target for address from the transport configuration
func (s *SettingsService) Target(address string) (protocol.Target, error) {
	ct, err := model.ParseConnectionType(s.config.Transport.Type)
	if err != nil {
		return protocol.Target{}, err
	}

	tc := s.config.Transport
	target := protocol.Target{
		Type:           ct,
		Address:        address,
		Channel:        uint8(tc.Channel),
		BaudRate:       tc.Serial.BaudRate,
		DataBits:       tc.Serial.DataBits,
		StopBits:       tc.Serial.StopBits,
		Parity:         tc.Serial.Parity,
		KeepAlive:      tc.KeepAlive,
		ConnectTimeout: tc.ConnectTimeout,
		Timeouts: protocol.Timeouts{
			Send:    tc.SendTimeout,
			Receive: tc.ReceiveTimeout,
		},
	}

	if err := protocol.ValidateTarget(target); err != nil {
		return protocol.Target{}, err
	}
	return target, nil
}

// Apply connects to the headset and applies the requested settings in order.
// The report is returned even when err is non-nil; changes after the first
// failure are marked skipped.
func (s *SettingsService) Apply(ctx context.Context, req ApplyRequest) (report *ApplyReport, err error) {
	target, err := s.Target(req.Address)
	if err != nil {
		return nil, err
	}

	brand := req.Brand
	if brand == "" {
		brand = model.BrandBose
	}
	if !s.registry.IsSupported(brand) {
		return nil, fmt.Errorf("%w %s (supported: %v)", driver.ErrUnsupportedBrand, brand, s.registry.GetSupportedBrands())
	}

	report = &ApplyReport{
		OperationID: uuid.New(),
		Device: model.Device{
			Address:        target.Address,
			Brand:          brand,
			ConnectionType: target.Type,
		},
		Connect: model.NewSettingOperation(model.OperationTypeConnect, target.Address),
	}
	for _, setting := range req.Settings {
		report.Operations = append(report.Operations, model.NewSettingOperation(operationTypeFor(setting.Kind), setting.Value()))
	}

	opLogger := utils.NewOperationLogger(s.logger, "apply", report.OperationID.String())
	deviceLogger := utils.NewDeviceLogger(opLogger.Logger(), &report.Device)
	opLogger.Start(zap.Int("settings", len(req.Settings)))

	defer func() {
		if err != nil {
			opLogger.Error(err, zap.Int("applied", report.Applied))
		} else {
			opLogger.Success(zap.Int("applied", report.Applied))
		}
	}()

	conn, err := s.protocolFactory(target, deviceLogger.Logger)
	if err != nil {
		report.skipFrom(0)
		return report, fmt.Errorf("failed to create %s transport: %w", target.Type, err)
	}

	report.Connect.Start()
	if err := conn.Open(ctx); err != nil {
		report.Connect.Complete(err)
		report.skipFrom(0)
		deviceLogger.LogConnection("open", err)
		return report, err
	}
	deviceLogger.LogConnection("open", nil)

	defer func() {
		closeErr := conn.Close()
		deviceLogger.LogConnection("close", closeErr)
		err = multierr.Append(err, closeErr)
	}()

	drv, err := s.registry.CreateDriver(&report.Device, conn, deviceLogger.Logger)
	if err != nil {
		report.Connect.Complete(err)
		report.skipFrom(0)
		return report, err
	}

	err = drv.InitConnection(ctx)
	report.Connect.Complete(err)
	deviceLogger.LogOperation(report.Connect)
	if err != nil {
		report.skipFrom(0)
		return report, err
	}

	for i, setting := range req.Settings {
		op := report.Operations[i]
		op.Start()
		err = applySetting(ctx, drv, setting)
		op.Complete(err)
		deviceLogger.LogOperation(op)

		if err != nil {
			if protocol.IsTransportError(err) {
				deviceLogger.LogConnection("lost", err)
			}
			report.skipFrom(i + 1)
			return report, err
		}
		report.Applied++
	}

	return report, nil
}

// skipFrom marks every operation from index i on as skipped
func (r *ApplyReport) skipFrom(i int) {
	for _, op := range r.Operations[i:] {
		op.Skip()
	}
}

func applySetting(ctx context.Context, drv pkgdriver.HeadsetDriver, setting settings.Setting) error {
	switch setting.Kind {
	case settings.KindName:
		return drv.SetName(ctx, setting.Name)
	case settings.KindNoiseCancelling:
		return drv.SetNoiseCancelling(ctx, setting.NoiseCancelling)
	case settings.KindAutoOff:
		return drv.SetAutoOff(ctx, setting.AutoOff)
	case settings.KindPromptLanguage:
		return drv.SetPromptLanguage(ctx, setting.PromptLanguage)
	default:
		_, err := drv.Apply(ctx, []settings.Setting{setting})
		return err
	}
}

func operationTypeFor(kind settings.Kind) model.OperationType {
	switch kind {
	case settings.KindName:
		return model.OperationTypeSetName
	case settings.KindNoiseCancelling:
		return model.OperationTypeSetNoiseCancelling
	case settings.KindAutoOff:
		return model.OperationTypeSetAutoOff
	case settings.KindPromptLanguage:
		return model.OperationTypeSetPromptLanguage
	default:
		return model.OperationType("SET_" + string(kind))
	}
}
