package command

import (
	"encoding/json"
	"fmt"
)

// Spec 运维接口提交的一条命令: {"type": "...", "payload": {...}}
type Spec struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeCommand 按命令类型把 JSON 负载还原为领域命令
func DecodeCommand(typeName string, payload json.RawMessage) (Command, error) {
	t, err := ParseType(typeName)
	if err != nil {
		return nil, err
	}
	var cmd Command
	switch t {
	case TypeAgentPing:
		cmd, err = decodePayload[PingCommand](payload)
	case TypeAgentRestart:
		cmd, err = decodePayload[RestartCommand](payload)
	case TypeAgentDie:
		cmd, err = decodePayload[DieCommand](payload)
	case TypeGetCurrentAgentBundle:
		cmd, err = decodePayload[GetBundleCommand](payload)
	case TypeConfigureResource:
		var c ConfigureResourceCommand
		c, err = decodePayload[ConfigureResourceCommand](payload)
		if err == nil && c.Config == nil {
			c.Config = NewConfigResponse(nil, nil)
		}
		cmd = c
	case TypeRemoveResource:
		cmd, err = decodePayload[RemoveResourceCommand](payload)
	case TypeScheduleMeasurements:
		var c ScheduleMeasurementsCommand
		c, err = decodePayload[ScheduleMeasurementsCommand](payload)
		if err == nil {
			for _, m := range c.Measurements {
				if verr := m.Validate(); verr != nil {
					err = verr
					break
				}
			}
		}
		cmd = c
	case TypeUnscheduleMeasurements:
		cmd, err = decodePayload[UnscheduleMeasurementsCommand](payload)
	case TypeGetMeasurements:
		cmd, err = decodePayload[GetMeasurementsCommand](payload)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return cmd, nil
}

// Decode 解码 Spec
func (s Spec) Decode() (Command, error) {
	return DecodeCommand(s.Type, s.Payload)
}

func decodePayload[C Command](payload json.RawMessage) (C, error) {
	var c C
	if len(payload) == 0 || string(payload) == "null" {
		return c, nil
	}
	err := json.Unmarshal(payload, &c)
	return c, err
}
