package http

import (
	"encoding/json"
	"strings"

	"github.com/castfold/casting-server/internal/core"
	"github.com/castfold/casting-server/internal/proto"
	"github.com/castfold/casting-server/internal/service/messages"
	"github.com/castfold/casting-server/internal/store"
)

// inboundToCommand maps a wire envelope to a core command. Anything
// wrong with the envelope comes back as a protocol error for the
// originator; a bad frame never fails the connection.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom:
		var join proto.JoinRoomData
		if err := json.Unmarshal(inbound.Data, &join); err != nil {
			return nil, malformed(inbound.Type)
		}
		if strings.TrimSpace(join.Code) == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "code is required"}
		}
		return &core.Command{Kind: core.CommandJoinRoom, RoomCode: join.Code}, nil

	case proto.InboundTypeLeaveRoom:
		return &core.Command{Kind: core.CommandLeaveRoom}, nil

	case proto.InboundTypeSendMessage:
		var msg proto.SendMessageData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, malformed(inbound.Type)
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "text is required"}
		}
		cmd := &core.Command{
			Kind:    core.CommandSendMessage,
			Text:    msg.Text,
			Episode: msg.IsEpisode,
		}
		if msg.ReplyTo != nil {
			cmd.Reply = &messages.Reply{Text: msg.ReplyTo.Text, SenderName: msg.ReplyTo.SenderName}
		}
		return cmd, nil

	case proto.InboundTypeCreateCharacter:
		var create proto.CreateCharacterData
		if err := json.Unmarshal(inbound.Data, &create); err != nil {
			return nil, malformed(inbound.Type)
		}
		if strings.TrimSpace(create.Name) == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "name is required"}
		}
		return &core.Command{
			Kind:          core.CommandCreateCharacter,
			CharacterName: create.Name,
			AvatarRef:     create.AvatarRef,
		}, nil

	case proto.InboundTypeClaimCharacter, proto.InboundTypeReleaseCharacter, proto.InboundTypeDeleteCharacter:
		var ref proto.CharacterIDData
		if err := json.Unmarshal(inbound.Data, &ref); err != nil {
			return nil, malformed(inbound.Type)
		}
		if ref.CharacterID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "characterId is required"}
		}
		kind := core.CommandClaimCharacter
		switch inbound.Type {
		case proto.InboundTypeReleaseCharacter:
			kind = core.CommandReleaseCharacter
		case proto.InboundTypeDeleteCharacter:
			kind = core.CommandDeleteCharacter
		}
		return &core.Command{Kind: kind, CharacterID: ref.CharacterID}, nil

	case proto.InboundTypeUpdateCharacter:
		var update proto.UpdateCharacterData
		if err := json.Unmarshal(inbound.Data, &update); err != nil {
			return nil, malformed(inbound.Type)
		}
		if update.CharacterID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "charId is required"}
		}
		if update.Name == nil && update.AvatarRef == nil {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "nothing to update"}
		}
		return &core.Command{
			Kind:        core.CommandUpdateCharacter,
			CharacterID: update.CharacterID,
			NamePatch:   update.Name,
			AvatarPatch: update.AvatarRef,
		}, nil

	case proto.InboundTypeDeleteMessage, proto.InboundTypeMarkRead:
		var ref proto.MessageIDData
		if err := json.Unmarshal(inbound.Data, &ref); err != nil {
			return nil, malformed(inbound.Type)
		}
		if ref.MessageID == "" {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "messageId is required"}
		}
		kind := core.CommandDeleteMessage
		if inbound.Type == proto.InboundTypeMarkRead {
			kind = core.CommandMarkRead
		}
		return &core.Command{Kind: kind, MessageID: ref.MessageID}, nil

	case proto.InboundTypeTyping:
		return &core.Command{Kind: core.CommandTyping}, nil

	case proto.InboundTypeStopTyping:
		return &core.Command{Kind: core.CommandStopTyping}, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
	}
}

func malformed(intentType string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: "malformed " + intentType + " payload"}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventRoomJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoomJoined,
			Data: proto.RoomJoinedData{
				RoomID: event.Room.ID,
				Code:   event.Room.Code,
				Name:   event.Room.Name,
			},
		}
	case core.EventChatHistory:
		history := make([]proto.MessageData, 0, len(event.Messages))
		for _, msg := range event.Messages {
			history = append(history, messageData(msg))
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventChatHistory,
			Data:  proto.ChatHistoryData{Messages: history},
		}
	case core.EventCharacterList:
		list := make([]proto.CharacterData, 0, len(event.Characters))
		for _, ch := range event.Characters {
			list = append(list, proto.CharacterData{
				ID:        ch.ID,
				Name:      ch.Name,
				AvatarURL: ch.AvatarURL,
				OwnerID:   ch.OwnerID,
				Active:    ch.Active,
			})
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUpdateList,
			Data:  list,
		}
	case core.EventMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventReceiveMessage,
			Data:  messageData(event.Message),
		}
	case core.EventMessageDeleted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageDeleted,
			Data:  proto.MessageDeletedData{MessageID: event.MessageID},
		}
	case core.EventMessagesRead:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessagesRead,
			Data:  proto.MessagesReadData{MessageID: event.MessageID},
		}
	case core.EventTypingStarted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventDisplayTyping,
			Data:  proto.TypingData{UserID: event.UserID, DisplayName: event.DisplayName},
		}
	case core.EventTypingStopped:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventHideTyping,
			Data:  proto.TypingData{UserID: event.UserID, DisplayName: event.DisplayName},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func messageData(msg *store.Message) proto.MessageData {
	data := proto.MessageData{
		ID:              msg.ID,
		SenderID:        msg.SenderID,
		SenderName:      msg.SenderName,
		CharacterName:   msg.CharacterName,
		CharacterAvatar: msg.CharacterAvatar,
		Text:            msg.Text,
		Deleted:         msg.Deleted,
		IsEpisode:       msg.Episode,
		IsRead:          msg.Read,
		TS:              msg.CreatedAt.Unix(),
	}
	if msg.ReplyText != nil {
		reply := proto.ReplyData{Text: *msg.ReplyText}
		if msg.ReplySender != nil {
			reply.SenderName = *msg.ReplySender
		}
		data.ReplyTo = &reply
	}
	return data
}
