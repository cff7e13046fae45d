package planner

import "testing"

func TestBuildHappyMulti(t *testing.T) {
	plan, err := Build(1048576, 4)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	want := []Chunk{
		{ID: 0, Start: 0, EndInclusive: 262143},
		{ID: 1, Start: 262144, EndInclusive: 524287},
		{ID: 2, Start: 524288, EndInclusive: 786431},
		{ID: 3, Start: 786432, EndInclusive: 1048575},
	}
	if len(plan.Chunks) != len(want) {
		t.Fatalf("got %d chunks, want %d", len(plan.Chunks), len(want))
	}
	for i, c := range plan.Chunks {
		if c != want[i] {
			t.Errorf("chunk %d = %+v, want %+v", i, c, want[i])
		}
	}
}

func TestBuildRemainder(t *testing.T) {
	plan, err := Build(10, 3)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	lengths := []int64{3, 3, 4}
	var sum int64
	for i, c := range plan.Chunks {
		if c.Length() != lengths[i] {
			t.Errorf("chunk %d length = %d, want %d", i, c.Length(), lengths[i])
		}
		sum += c.Length()
	}
	if sum != 10 {
		t.Errorf("sum of chunk lengths = %d, want 10", sum)
	}
}

func TestBuildContiguousAndNonOverlapping(t *testing.T) {
	plan, err := Build(997, 7)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if plan.Chunks[0].Start != 0 {
		t.Errorf("first chunk start = %d, want 0", plan.Chunks[0].Start)
	}
	last := plan.Chunks[len(plan.Chunks)-1]
	if last.EndInclusive != 996 {
		t.Errorf("last chunk end = %d, want 996", last.EndInclusive)
	}
	var sum int64
	for i, c := range plan.Chunks {
		if i > 0 && c.Start != plan.Chunks[i-1].EndInclusive+1 {
			t.Errorf("chunk %d not contiguous with previous", i)
		}
		sum += c.Length()
	}
	if sum != 997 {
		t.Errorf("sum = %d, want 997", sum)
	}
}

func TestBuildClampsWhenLengthBelowThreadCount(t *testing.T) {
	plan, err := Build(3, 8)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(plan.Chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(plan.Chunks))
	}
	for _, c := range plan.Chunks {
		if c.Length() != 1 {
			t.Errorf("chunk %+v length = %d, want 1", c, c.Length())
		}
	}
}

func TestBuildEmptyContentLength(t *testing.T) {
	plan, err := Build(0, 4)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(plan.Chunks) != 0 {
		t.Errorf("got %d chunks, want 0", len(plan.Chunks))
	}
}

func TestBuildSingleThread(t *testing.T) {
	plan, err := Build(500, 1)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(plan.Chunks) != 1 || plan.Chunks[0].Start != 0 || plan.Chunks[0].EndInclusive != 499 {
		t.Errorf("unexpected single-thread plan: %+v", plan.Chunks)
	}
}

func TestBuildRejectsInvalidInputs(t *testing.T) {
	if _, err := Build(-1, 4); err == nil {
		t.Error("expected error for negative content length")
	}
	if _, err := Build(100, 0); err == nil {
		t.Error("expected error for zero thread count")
	}
}

func TestChunkRangeHeader(t *testing.T) {
	c := Chunk{ID: 0, Start: 10, EndInclusive: 19}
	if got, want := c.RangeHeader(), "bytes=10-19"; got != want {
		t.Errorf("RangeHeader() = %q, want %q", got, want)
	}
}
