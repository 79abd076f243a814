package command

import "fmt"

// Type 命令类型，封闭集合，名称大小写敏感
type Type string

const (
	TypeAgentPing              Type = "AGENT_PING"
	TypeAgentRestart           Type = "AGENT_RESTART"
	TypeAgentDie               Type = "AGENT_DIE"
	TypeGetCurrentAgentBundle  Type = "GET_CURRENT_AGENT_BUNDLE"
	TypeConfigureResource      Type = "CONFIGURE_RESOURCE"
	TypeRemoveResource         Type = "REMOVE_RESOURCE"
	TypeScheduleMeasurements   Type = "SCHEDULE_MEASUREMENTS"
	TypeUnscheduleMeasurements Type = "UNSCHEDULE_MEASUREMENTS"
	TypeGetMeasurements        Type = "GET_MEASUREMENTS"
)

var allTypes = []Type{
	TypeAgentPing,
	TypeAgentRestart,
	TypeAgentDie,
	TypeGetCurrentAgentBundle,
	TypeConfigureResource,
	TypeRemoveResource,
	TypeScheduleMeasurements,
	TypeUnscheduleMeasurements,
	TypeGetMeasurements,
}

// AllTypes 返回全部命令类型
func AllTypes() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// Valid 是否属于封闭集合
func (t Type) Valid() bool {
	for _, k := range allTypes {
		if k == t {
			return true
		}
	}
	return false
}

func (t Type) String() string {
	return string(t)
}

// ParseType 精确匹配命令类型名称
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommandType, s)
	}
	return t, nil
}

// Command 领域命令
type Command interface {
	CommandType() Type
}
