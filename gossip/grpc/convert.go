package grpc

import (
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/maxpoletaev/esclient/membership"
)

const (
	fieldMembers    = "members"
	fieldInstanceID = "instance_id"
	fieldState      = "state"
	fieldIsAlive    = "is_alive"
	fieldEndpoint   = "http_end_point"
	fieldAddress    = "address"
	fieldPort       = "port"
)

func fromClusterInfo(info *structpb.Struct) (membership.Topology, error) {
	list := info.GetFields()[fieldMembers].GetListValue()
	members := make([]membership.Member, 0, len(list.GetValues()))

	for idx, v := range list.GetValues() {
		m, err := fromMemberInfo(v.GetStructValue())
		if err != nil {
			return membership.Topology{}, fmt.Errorf("member %d: %w", idx, err)
		}

		members = append(members, m)
	}

	return membership.Topology{Members: members}, nil
}

func fromMemberInfo(info *structpb.Struct) (membership.Member, error) {
	fields := info.GetFields()

	var m membership.Member

	if s := fields[fieldInstanceID].GetStringValue(); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return m, fmt.Errorf("invalid instance id: %w", err)
		}

		m.ID = id
	}

	// Unknown states are kept as StateUnknown, which is never routed to.
	m.State, _ = membership.ParseState(fields[fieldState].GetStringValue())
	m.IsAlive = fields[fieldIsAlive].GetBoolValue()

	endpoint := fields[fieldEndpoint].GetStructValue().GetFields()
	if host := endpoint[fieldAddress].GetStringValue(); host != "" {
		port := int(endpoint[fieldPort].GetNumberValue())
		m.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	}

	return m, nil
}
