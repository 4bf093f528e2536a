package plan

import "testing"

func TestSignRoundTrip(t *testing.T) {
	signs := []Sign{
		{Tag: TagFile, ID: "a1b2c3d4", Payload: "data/input.json"},
		{Tag: TagPrompt, ID: "ffee0011", Payload: "prompts/double.md"},
		{Tag: TagLiteral, ID: "00000001", Payload: `{"n":5}`},
		{Tag: TagBool, ID: "00000002", Payload: "true"},
		{Tag: TagFileList, ID: "00000003", Payload: "a.txt\nb.txt"},
	}
	for _, in := range signs {
		out, err := ParseSign(in.String())
		if err != nil {
			t.Fatalf("ParseSign(%q) failed: %v", in.String(), err)
		}
		if out != in {
			t.Errorf("round trip: got %+v, want %+v", out, in)
		}
	}
}

func TestParseSignRejectsMalformed(t *testing.T) {
	cases := []string{
		"plain literal value",
		"sign:file",            // no id or payload
		"sign:file:abc",        // no payload separator
		"sign:bogus:abc:x",     // unknown tag
		"sign:file::data.json", // empty id
	}
	for _, in := range cases {
		if _, err := ParseSign(in); err == nil {
			t.Errorf("ParseSign(%q) should fail", in)
		}
	}
}

func TestIsSign(t *testing.T) {
	if !IsSign("sign:file:ab:data.json") {
		t.Error("sign prefix not recognized")
	}
	if IsSign("literal text") {
		t.Error("literal misclassified as sign")
	}
	// Payload containing colons must survive.
	s := Sign{Tag: TagFile, ID: "id1", Payload: "C:/data/x.json"}
	out, err := ParseSign(s.String())
	if err != nil || out.Payload != "C:/data/x.json" {
		t.Errorf("colon payload mangled: %+v, %v", out, err)
	}
}
