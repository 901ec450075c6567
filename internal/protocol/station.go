package protocol

import (
	"io"

	pk "github.com/Tnze/go-mc/net/packet"

	"kitchencraft.ai/internal/cooking"
)

// Station command ops. Arg and Count are read per op:
//
//	place        Arg = station kind
//	add_item     Arg = item id, Count = stack size (default 1)
//	use          Arg = held item id, empty for a bare hand
//	take_food    Count = grams
//	fill         Arg = container item id
//	remove_item, break, cycle_heat, stop, status take neither.
const (
	OpPlace      = "place"
	OpBreak      = "break"
	OpAddItem    = "add_item"
	OpUse        = "use"
	OpCycleHeat  = "cycle_heat"
	OpStop       = "stop"
	OpTakeFood   = "take_food"
	OpFill       = "fill"
	OpRemoveItem = "remove_item"
	OpStatus     = "status"
)

// StationCommand is one player interaction with the station block at Pos.
type StationCommand struct {
	RequestID string
	Op        string
	Pos       [3]int
	Arg       string
	Count     int
}

func (c *StationCommand) WriteTo(w io.Writer) (int64, error) {
	return pk.Tuple{
		pk.String(c.RequestID),
		pk.String(c.Op),
		pk.Int(c.Pos[0]),
		pk.Int(c.Pos[1]),
		pk.Int(c.Pos[2]),
		pk.String(c.Arg),
		pk.VarInt(c.Count),
	}.WriteTo(w)
}

func (c *StationCommand) ReadFrom(r io.Reader) (int64, error) {
	var id, op, arg pk.String
	var x, y, z pk.Int
	var count pk.VarInt
	n, err := pk.Tuple{&id, &op, &x, &y, &z, &arg, &count}.ReadFrom(r)
	if err != nil {
		return n, err
	}
	*c = StationCommand{
		RequestID: string(id),
		Op:        string(op),
		Pos:       [3]int{int(x), int(y), int(z)},
		Arg:       string(arg),
		Count:     int(count),
	}
	return n, nil
}

func (c *StationCommand) Encode() ([]byte, error) {
	return EncodeFrame(PacketStationCommand, c)
}

func DecodeStationCommand(b []byte) (StationCommand, error) {
	var c StationCommand
	err := Decode(b, PacketStationCommand, &c)
	return c, err
}

// StationStatus is the wire view of a station after a command.
type StationStatus struct {
	Kind        string
	State       string
	Action      string
	Progress    float64
	Ingredients int
	Capacity    int
	HasHeat     bool
	Heat        string
	FoodType    string
	FoodGrams   int
	BoardItem   string
	Chopped     bool
}

func NewStationStatus(st cooking.StationStatus) *StationStatus {
	return &StationStatus{
		Kind:        string(st.Kind),
		State:       st.State,
		Action:      st.Action,
		Progress:    st.Progress,
		Ingredients: st.Ingredients,
		Capacity:    st.Capacity,
		HasHeat:     st.HasHeat,
		Heat:        st.Heat,
		FoodType:    st.Food.FoodType,
		FoodGrams:   st.Food.WeightGrams,
		BoardItem:   st.BoardItem,
		Chopped:     st.Chopped,
	}
}

func (s *StationStatus) fields() pk.Tuple {
	return pk.Tuple{
		pk.String(s.Kind),
		pk.String(s.State),
		pk.String(s.Action),
		pk.Double(s.Progress),
		pk.VarInt(s.Ingredients),
		pk.VarInt(s.Capacity),
		pk.Boolean(s.HasHeat),
		pk.String(s.Heat),
		pk.String(s.FoodType),
		pk.VarInt(s.FoodGrams),
		pk.String(s.BoardItem),
		pk.Boolean(s.Chopped),
	}
}

func (s *StationStatus) ReadFrom(r io.Reader) (int64, error) {
	var kind, state, action, heat, food, board pk.String
	var progress pk.Double
	var ingredients, capacity, grams pk.VarInt
	var hasHeat, chopped pk.Boolean
	n, err := pk.Tuple{
		&kind, &state, &action, &progress, &ingredients, &capacity,
		&hasHeat, &heat, &food, &grams, &board, &chopped,
	}.ReadFrom(r)
	if err != nil {
		return n, err
	}
	*s = StationStatus{
		Kind:        string(kind),
		State:       string(state),
		Action:      string(action),
		Progress:    float64(progress),
		Ingredients: int(ingredients),
		Capacity:    int(capacity),
		HasHeat:     bool(hasHeat),
		Heat:        string(heat),
		FoodType:    string(food),
		FoodGrams:   int(grams),
		BoardItem:   string(board),
		Chopped:     bool(chopped),
	}
	return n, nil
}

// StationResult answers a StationCommand. Detail and Amount are op
// specific (the action started, grams taken, the item removed); Status is
// the station afterwards and is absent once the station is gone.
type StationResult struct {
	RequestID string
	Success   bool
	Code      string
	Detail    string
	Amount    int
	Status    *StationStatus
}

func (p *StationResult) WriteTo(w io.Writer) (int64, error) {
	n, err := pk.Tuple{
		pk.String(p.RequestID),
		pk.Boolean(p.Success),
		pk.String(p.Code),
		pk.String(p.Detail),
		pk.VarInt(p.Amount),
		pk.Boolean(p.Status != nil),
	}.WriteTo(w)
	if err != nil || p.Status == nil {
		return n, err
	}
	m, err := p.Status.fields().WriteTo(w)
	return n + m, err
}

func (p *StationResult) ReadFrom(r io.Reader) (int64, error) {
	var id, code, detail pk.String
	var success, hasStatus pk.Boolean
	var amount pk.VarInt
	n, err := pk.Tuple{&id, &success, &code, &detail, &amount, &hasStatus}.ReadFrom(r)
	if err != nil {
		return n, err
	}
	*p = StationResult{
		RequestID: string(id),
		Success:   bool(success),
		Code:      string(code),
		Detail:    string(detail),
		Amount:    int(amount),
	}
	if !hasStatus {
		return n, nil
	}
	var st StationStatus
	m, err := st.ReadFrom(r)
	n += m
	if err != nil {
		return n, err
	}
	p.Status = &st
	return n, nil
}

func (p *StationResult) Encode() ([]byte, error) {
	return EncodeFrame(PacketStationResult, p)
}

func DecodeStationResult(b []byte) (StationResult, error) {
	var p StationResult
	err := Decode(b, PacketStationResult, &p)
	return p, err
}
