package routenlp

import "testing"

func TestExtractFromTo(t *testing.T) {
	route, ok := ExtractRoute("Can I drive from Mumbai to Pune tomorrow?")
	if !ok {
		t.Fatal("expected a match")
	}
	if route.Origin != "Mumbai" || route.Destination != "Pune" {
		t.Fatalf("unexpected route: %+v", route)
	}
}

// Captures are single words: a multi-word place name loses its prefix.
func TestExtractFromToSingleWordCapture(t *testing.T) {
	route, ok := ExtractRoute("trip from navi mumbai to lonavala")
	if !ok {
		t.Fatal("expected a match")
	}
	if route.Origin != "Mumbai" || route.Destination != "Lonavala" {
		t.Fatalf("unexpected route: %+v", route)
	}
}

// "reach Y from X" mentions the destination first; the extractor must swap
// the captured groups.
func TestExtractReachSwapsGroups(t *testing.T) {
	route, ok := ExtractRoute("can I reach pune from mumbai with 60% battery")
	if !ok {
		t.Fatal("expected a match")
	}
	if route.Origin != "Mumbai" || route.Destination != "Pune" {
		t.Fatalf("groups not swapped: %+v", route)
	}
}

func TestExtractBareTo(t *testing.T) {
	route, ok := ExtractRoute("mumbai to pune feasible?")
	if !ok {
		t.Fatal("expected a match")
	}
	if route.Origin != "Mumbai" || route.Destination != "Pune" {
		t.Fatalf("unexpected route: %+v", route)
	}
}

// The from-to pattern takes priority over the bare "X to Y" pattern.
func TestExtractPatternPriority(t *testing.T) {
	route, ok := ExtractRoute("going from thane to nashik, then nashik to pune")
	if !ok {
		t.Fatal("expected a match")
	}
	if route.Origin != "Thane" || route.Destination != "Nashik" {
		t.Fatalf("expected first from-to match, got %+v", route)
	}
}

func TestExtractNoMatch(t *testing.T) {
	for _, text := range []string{
		"what is my average efficiency?",
		"tell me about battery health",
		"",
	} {
		if route, ok := ExtractRoute(text); ok {
			t.Errorf("ExtractRoute(%q) unexpectedly matched: %+v", text, route)
		}
	}
}
