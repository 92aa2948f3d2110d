package runbeam

import "testing"

func TestMetadataChaining(t *testing.T) {
	md := Metadata{}.Set("env", "prod").Set("version", 3)

	if v, ok := md.Get("env"); !ok || v != "prod" {
		t.Errorf("Get(env) = %v, %v", v, ok)
	}
	if _, ok := md.Get("absent"); ok {
		t.Error("Get(absent) should report missing")
	}
}

func TestMetadataMerge(t *testing.T) {
	base := Metadata{"a": 1, "b": 1}
	merged := base.Merge(Metadata{"b": 2, "c": 2})

	if merged["a"] != 1 || merged["b"] != 2 || merged["c"] != 2 {
		t.Errorf("Merge = %v", merged)
	}
	if base["b"] != 1 {
		t.Error("Merge must not mutate the receiver")
	}

	if got := (Metadata)(nil).Merge(nil); got != nil {
		t.Errorf("empty merge = %v, want nil", got)
	}
}
