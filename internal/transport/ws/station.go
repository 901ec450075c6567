package ws

import (
	"context"
	"strconv"

	"kitchencraft.ai/internal/cooking"
	"kitchencraft.ai/internal/kitchen"
	"kitchencraft.ai/internal/protocol"
)

// maxStack bounds add_item counts to one Minecraft stack.
const maxStack = 64

// HandleStation applies one station command through the kitchen loop.
func (s *Server) HandleStation(ctx context.Context, cmd protocol.StationCommand) protocol.StationResult {
	res := protocol.StationResult{RequestID: cmd.RequestID}
	ctx, cancel := context.WithTimeout(ctx, s.cmdTimeout)
	defer cancel()

	pos := kitchen.PosFromArray(cmd.Pos)
	code, err := s.apply(ctx, pos, cmd, &res)
	if err != nil {
		code = codeFor(err)
	}
	if code != "" {
		s.log.Printf("ws: station request=%s op=%s pos=%s: %s", cmd.RequestID, cmd.Op, pos, code)
		res.Code = code
		return res
	}
	res.Success = true
	if cmd.Op == protocol.OpBreak {
		return res
	}
	if st, err := s.kitchen.Status(ctx, pos); err == nil {
		res.Status = protocol.NewStationStatus(st)
	}
	return res
}

// apply returns a protocol code for requests rejected before they reach the
// kitchen, or the kitchen's error.
func (s *Server) apply(ctx context.Context, pos kitchen.Pos, cmd protocol.StationCommand, res *protocol.StationResult) (string, error) {
	switch cmd.Op {
	case protocol.OpPlace:
		kind, err := cooking.ParseKind(cmd.Arg)
		if err != nil {
			return protocol.ErrProtoBadRequest, nil
		}
		return "", s.kitchen.Place(ctx, pos, kind)

	case protocol.OpBreak:
		back, err := s.kitchen.Break(ctx, pos)
		res.Amount = len(back)
		return "", err

	case protocol.OpAddItem:
		count := cmd.Count
		if count == 0 {
			count = 1
		}
		if count < 0 || count > maxStack {
			return protocol.ErrProtoBadRequest, nil
		}
		if s.catalog == nil {
			return protocol.ErrInternal, nil
		}
		it, ok := s.catalog.Item(cmd.Arg, count)
		if !ok {
			return protocol.ErrUnknownItem, nil
		}
		return "", s.kitchen.AddItem(ctx, pos, it)

	case protocol.OpUse:
		tool := cooking.ToolNone
		if cmd.Arg != "" {
			if s.catalog == nil {
				return protocol.ErrInternal, nil
			}
			if _, ok := s.catalog.Item(cmd.Arg, 1); !ok {
				return protocol.ErrUnknownItem, nil
			}
			tool = s.catalog.ToolRole(cmd.Arg)
		}
		a, err := s.kitchen.Use(ctx, pos, tool)
		res.Detail = a.ID
		return "", err

	case protocol.OpCycleHeat:
		h, err := s.kitchen.CycleHeat(ctx, pos)
		res.Detail = h.String()
		return "", err

	case protocol.OpStop:
		stopped, err := s.kitchen.StopCooking(ctx, pos)
		res.Detail = strconv.FormatBool(stopped)
		return "", err

	case protocol.OpTakeFood:
		if cmd.Count <= 0 {
			return protocol.ErrProtoBadRequest, nil
		}
		n, err := s.kitchen.TakeFood(ctx, pos, cmd.Count)
		res.Amount = n
		return "", err

	case protocol.OpFill:
		if s.catalog == nil {
			return protocol.ErrInternal, nil
		}
		kind, ok := s.catalog.Container(cmd.Arg)
		if !ok {
			return protocol.ErrUnknownItem, nil
		}
		c, err := s.kitchen.FillContainer(ctx, pos, cooking.NewContainer(kind))
		res.Detail = c.FoodType
		res.Amount = c.WeightGrams
		return "", err

	case protocol.OpRemoveItem:
		it, err := s.kitchen.RemoveItem(ctx, pos)
		res.Detail = it.ID
		res.Amount = it.Count
		return "", err

	case protocol.OpStatus:
		_, err := s.kitchen.Status(ctx, pos)
		return "", err
	}
	return protocol.ErrProtoBadRequest, nil
}
