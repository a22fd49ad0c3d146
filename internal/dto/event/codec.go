package event

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"

	"agrilink_server/pkg/errorx"

	"github.com/go-playground/validator/v10"
)

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outEnvelope struct {
	Type string   `json:"type"`
	Data Outbound `json:"data"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 错误信息里使用 json 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func newInbound(name string) Inbound {
	switch name {
	case TypeJoinUser:
		return &JoinUser{}
	case TypeJoinChat:
		return &JoinChat{}
	case TypeSendMessage:
		return &SendMessage{}
	case TypeSendFriendRequest:
		return &SendFriendRequest{}
	case TypeSendLikeNotification:
		return &SendLikeNotification{}
	case TypeInitiateCall:
		return &InitiateCall{}
	case TypeAcceptCall:
		return &AcceptCall{}
	case TypeRejectCall:
		return &RejectCall{}
	case TypeEndCall:
		return &EndCall{}
	case TypeRelaySignal:
		return &RelaySignal{}
	}
	return nil
}

// Decode 解析一帧上行数据
// 返回的 name 在解析出 type 后即有效，便于错误事件回填来源事件名
// 所有失败都是 CodeInvalidParam
func Decode(raw []byte) (name string, in Inbound, err error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, errorx.Wrap(err, errorx.CodeInvalidParam, "事件格式错误")
	}
	in = newInbound(env.Type)
	if in == nil {
		return env.Type, nil, errorx.Newf(errorx.CodeInvalidParam, "未知事件 %q", env.Type)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return env.Type, nil, errorx.Newf(errorx.CodeInvalidParam, "事件 %s 缺少 data", env.Type)
	}
	if err := json.Unmarshal(env.Data, in); err != nil {
		return env.Type, nil, errorx.Wrapf(err, errorx.CodeInvalidParam, "事件 %s 参数格式错误", env.Type)
	}
	if err := Validate(in); err != nil {
		return env.Type, nil, err
	}
	return env.Type, in, nil
}

// Validate 按 validate 标签校验事件字段
func Validate(in Inbound) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errorx.Newf(errorx.CodeInvalidParam, "字段 %s 校验失败: %s", fe.Field(), fe.Tag())
	}
	return errorx.Wrap(err, errorx.CodeInvalidParam, "参数校验失败")
}

// Encode 编码下行事件
func Encode(out Outbound) ([]byte, error) {
	return json.Marshal(outEnvelope{Type: out.EventName(), Data: out})
}
