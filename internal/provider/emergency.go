package provider

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
)

// emergencyPool is a small embedded set of pre-vetted entries. It is the last
// tier: dependency-free, so the pipeline can always terminate in a post
// instead of failing the whole day. That trades novelty for availability.
var emergencyPool = []RawPick{
	{
		Year:  "1473",
		Event: "Astronomer Nicolaus Copernicus was born in Torun, Poland. His heliocentric model would upend a millennium of sky-watching.",
		Link:  "https://www.nasa.gov/history/100-years-ago-copernicus/",
	},
	{
		Year:  "1879",
		Event: "Thomas Edison first publicly demonstrated his incandescent light bulb. Street lighting would never look the same again.",
		Link:  "https://www.loc.gov/everyday-mysteries/item/who-invented-the-light-bulb/",
	},
	{
		Year:  "1903",
		Event: "The Wright brothers flew the first powered, controlled airplane at Kitty Hawk. The flight lasted twelve seconds and changed everything.",
		Link:  "https://airandspace.si.edu/exhibitions/wright-brothers",
	},
	{
		Year:  "1969",
		Event: "The first message was sent across ARPANET between UCLA and Stanford. The network crashed after two letters, but the internet was born.",
		Link:  "https://www.internetsociety.org/internet/history-internet/brief-history-internet/",
	},
}

// Emergency is the deterministic, network-free fallback tier.
type Emergency struct {
	name string
	pool []RawPick
}

func NewEmergency(name string) *Emergency {
	if name == "" {
		name = "emergency"
	}
	return &Emergency{name: name, pool: emergencyPool}
}

func (e *Emergency) Name() string { return e.name }

// Pick returns a pool entry as JSON so it flows through the same extraction
// and validation path as any model response. The entry is chosen
// deterministically from the date key, skipping excluded identities when the
// pool allows it.
func (e *Emergency) Pick(ctx context.Context, req PickRequest) (string, error) {
	_ = ctx
	if len(e.pool) == 0 {
		return "", permanent(errEmptyPool)
	}

	excluded := make(map[string]bool, len(req.Exclusions))
	for _, id := range req.Exclusions {
		excluded[id] = true
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(req.DateKey))
	start := int(h.Sum32()) % len(e.pool)
	if start < 0 {
		start += len(e.pool)
	}

	pick := e.pool[start]
	for i := 0; i < len(e.pool); i++ {
		cand := e.pool[(start+i)%len(e.pool)]
		if !excluded[cand.Link] {
			pick = cand
			break
		}
	}

	b, err := json.Marshal(pick)
	if err != nil {
		return "", permanent(err)
	}
	return string(b), nil
}

var errEmptyPool = errors.New("emergency pool is empty")
