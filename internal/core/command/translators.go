/**
 * 内置命令翻译器
 * @author: sun977
 * @date: 2026.03.03
 * @description: 九种命令类型的请求构造、响应解码与 Agent 端解包
 */
package command

import (
	"encoding/json"
	"fmt"

	"neofleet/internal/core/measurement"
)

// 服务接口名
const (
	ServiceLifecycle   = "neofleet.agent.LifecycleService"
	ServiceResource    = "neofleet.agent.ResourceService"
	ServiceMeasurement = "neofleet.agent.MeasurementService"
)

// 参数类型描述
const (
	ParamString        = "string"
	ParamEntity        = "EntityID"
	ParamEntityList    = "[]EntityID"
	ParamStringMap     = "map[string]string"
	ParamSealedMap     = "map[string]sealed"
	ParamRecordList    = "[]MeasurementRecord"
	ParamDerivedIDList = "[]int64"
)

// DefaultRegistry 注册全部内置翻译器
// sealer 用于 CONFIGURE_RESOURCE 的加密配置，Master 与 Agent 必须使用相同密钥
func DefaultRegistry(sealer Sealer) *Registry {
	if sealer == nil {
		sealer = PlainSealer{}
	}
	r := NewRegistry()
	r.MustRegister(TypeAgentPing, pingTranslator())
	r.MustRegister(TypeAgentRestart, lifecycleTranslator[RestartCommand]("restart"))
	r.MustRegister(TypeAgentDie, lifecycleTranslator[DieCommand]("die"))
	r.MustRegister(TypeGetCurrentAgentBundle, bundleTranslator())
	r.MustRegister(TypeConfigureResource, configureResourceTranslator(sealer))
	r.MustRegister(TypeRemoveResource, removeResourceTranslator())
	r.MustRegister(TypeScheduleMeasurements, scheduleTranslator())
	r.MustRegister(TypeUnscheduleMeasurements, unscheduleTranslator())
	r.MustRegister(TypeGetMeasurements, getMeasurementsTranslator())
	return r
}

// as 接受值或指针形式的命令
func as[T Command](cmd Command) (T, error) {
	var zero T
	switch c := any(cmd).(type) {
	case T:
		return c, nil
	case *T:
		if c != nil {
			return *c, nil
		}
	}
	return zero, fmt.Errorf("unexpected command %T for %s", cmd, zero.CommandType())
}

// decodeResult 解码成功响应的 Result
func decodeResult[R any](resp *Response) (any, error) {
	if len(resp.Result) == 0 {
		return nil, fmt.Errorf("empty result")
	}
	out := new(R)
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return out, nil
}

func pingTranslator() Translator {
	return Translator{
		Request: func(cmd Command) (*Request, error) {
			if _, err := as[PingCommand](cmd); err != nil {
				return nil, err
			}
			return newRequest(ServiceLifecycle, "ping")
		},
		Response: decodeResult[PingResponse],
		Unpack: func(req *Request) (Command, error) {
			return PingCommand{}, nil
		},
	}
}

// lifecycleCommand 重启与停止命令共用一个带 Reason 的形状
type lifecycleCommand interface {
	RestartCommand | DieCommand
	Command
}

func lifecycleTranslator[C lifecycleCommand](method string) Translator {
	return Translator{
		Request: func(cmd Command) (*Request, error) {
			c, err := as[C](cmd)
			if err != nil {
				return nil, err
			}
			return newRequest(ServiceLifecycle, method, argument{ParamString, reasonOf(c)})
		},
		Response: decodeResult[LifecycleResponse],
		Unpack: func(req *Request) (Command, error) {
			var reason string
			if err := req.Arg(0, ParamString, &reason); err != nil {
				return nil, err
			}
			var c C
			switch p := any(&c).(type) {
			case *RestartCommand:
				p.Reason = reason
			case *DieCommand:
				p.Reason = reason
			}
			return c, nil
		},
	}
}

func reasonOf(cmd Command) string {
	switch c := cmd.(type) {
	case RestartCommand:
		return c.Reason
	case DieCommand:
		return c.Reason
	}
	return ""
}

func bundleTranslator() Translator {
	return Translator{
		Request: func(cmd Command) (*Request, error) {
			if _, err := as[GetBundleCommand](cmd); err != nil {
				return nil, err
			}
			return newRequest(ServiceLifecycle, "currentBundle")
		},
		Response: decodeResult[BundleResponse],
		Unpack: func(req *Request) (Command, error) {
			return GetBundleCommand{}, nil
		},
	}
}

func configureResourceTranslator(sealer Sealer) Translator {
	return Translator{
		Request: func(cmd Command) (*Request, error) {
			c, err := as[ConfigureResourceCommand](cmd)
			if err != nil {
				return nil, err
			}
			secured := c.Config.Secured()
			sealed := make(map[string]string, len(secured))
			for k, v := range secured {
				s, err := sealer.Seal(v)
				if err != nil {
					return nil, fmt.Errorf("seal %q: %w", k, err)
				}
				sealed[k] = s
			}
			return newRequest(ServiceResource, "configure",
				argument{ParamEntity, c.Entity},
				argument{ParamStringMap, c.Config.Public()},
				argument{ParamSealedMap, sealed},
			)
		},
		Response: decodeResult[ConfigureResourceResponse],
		Unpack: func(req *Request) (Command, error) {
			var (
				entity  measurement.EntityID
				public  map[string]string
				sealed  map[string]string
				secured = make(map[string]string)
			)
			if err := req.Arg(0, ParamEntity, &entity); err != nil {
				return nil, err
			}
			if err := req.Arg(1, ParamStringMap, &public); err != nil {
				return nil, err
			}
			if err := req.Arg(2, ParamSealedMap, &sealed); err != nil {
				return nil, err
			}
			for k, v := range sealed {
				plain, err := sealer.Open(v)
				if err != nil {
					return nil, fmt.Errorf("open %q: %w", k, err)
				}
				secured[k] = plain
			}
			return ConfigureResourceCommand{Entity: entity, Config: NewConfigResponse(public, secured)}, nil
		},
	}
}

func removeResourceTranslator() Translator {
	return Translator{
		Request: func(cmd Command) (*Request, error) {
			c, err := as[RemoveResourceCommand](cmd)
			if err != nil {
				return nil, err
			}
			return newRequest(ServiceResource, "remove", argument{ParamEntity, c.Entity})
		},
		Response: decodeResult[RemoveResourceResponse],
		Unpack: func(req *Request) (Command, error) {
			var c RemoveResourceCommand
			if err := req.Arg(0, ParamEntity, &c.Entity); err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

func scheduleTranslator() Translator {
	return Translator{
		Request: func(cmd Command) (*Request, error) {
			c, err := as[ScheduleMeasurementsCommand](cmd)
			if err != nil {
				return nil, err
			}
			records := make([]string, 0, len(c.Measurements))
			for _, m := range c.Measurements {
				s, err := measurement.Encode(m)
				if err != nil {
					return nil, fmt.Errorf("encode measurement %d: %w", m.DerivedID, err)
				}
				records = append(records, s)
			}
			return newRequest(ServiceMeasurement, "schedule", argument{ParamRecordList, records})
		},
		Response: decodeResult[ScheduleMeasurementsResponse],
		Unpack: func(req *Request) (Command, error) {
			var records []string
			if err := req.Arg(0, ParamRecordList, &records); err != nil {
				return nil, err
			}
			// 单条记录损坏只丢弃该条
			c := ScheduleMeasurementsCommand{Measurements: make([]measurement.ScheduledMeasurement, 0, len(records))}
			for i, s := range records {
				m, err := measurement.Decode(s)
				if err != nil {
					c.Rejected = append(c.Rejected, RejectedMeasurement{DerivedID: -1, Reason: fmt.Sprintf("record %d: %v", i, err)})
					continue
				}
				c.Measurements = append(c.Measurements, m)
			}
			return c, nil
		},
	}
}

func unscheduleTranslator() Translator {
	return Translator{
		Request: func(cmd Command) (*Request, error) {
			c, err := as[UnscheduleMeasurementsCommand](cmd)
			if err != nil {
				return nil, err
			}
			return newRequest(ServiceMeasurement, "unschedule", argument{ParamEntityList, c.Entities})
		},
		Response: decodeResult[UnscheduleMeasurementsResponse],
		Unpack: func(req *Request) (Command, error) {
			var c UnscheduleMeasurementsCommand
			if err := req.Arg(0, ParamEntityList, &c.Entities); err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

func getMeasurementsTranslator() Translator {
	return Translator{
		Request: func(cmd Command) (*Request, error) {
			c, err := as[GetMeasurementsCommand](cmd)
			if err != nil {
				return nil, err
			}
			ids := c.DerivedIDs
			if ids == nil {
				ids = []int64{}
			}
			return newRequest(ServiceMeasurement, "collect",
				argument{ParamEntity, c.Entity},
				argument{ParamDerivedIDList, ids},
			)
		},
		Response: decodeResult[GetMeasurementsResponse],
		Unpack: func(req *Request) (Command, error) {
			var c GetMeasurementsCommand
			if err := req.Arg(0, ParamEntity, &c.Entity); err != nil {
				return nil, err
			}
			if err := req.Arg(1, ParamDerivedIDList, &c.DerivedIDs); err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}
