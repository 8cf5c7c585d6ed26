package assembler

import "testing"

func TestDefineBytesAndWords(t *testing.T) {
	a := newTestAssembler()
	src := `
		ORG 32768
		DB 1,2,"AB"
		DW 258
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	want := []byte{1, 2, 'A', 'B', 0x02, 0x01}
	if string(res.Binary) != string(want) {
		t.Fatalf("binary = % X, want % X", res.Binary, want)
	}
}

func TestDefineSpaceFillsWithGivenByte(t *testing.T) {
	a := newTestAssembler()
	src := `
		ORG 32768
		DS 4,$AA
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	want := []byte{0xAA, 0xAA, 0xAA, 0xAA}
	if string(res.Binary) != string(want) {
		t.Fatalf("binary = % X, want % X", res.Binary, want)
	}
}

func TestAlignPadsToBoundary(t *testing.T) {
	a := newTestAssembler()
	src := `
		ORG 32765
		DB 1
		ALIGN 4
		DB 2
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	want := []byte{1, 0, 0, 2}
	if string(res.Binary) != string(want) {
		t.Fatalf("binary = % X, want % X", res.Binary, want)
	}
}

func TestAssertFailureIsRecordedAsError(t *testing.T) {
	a := newTestAssembler()
	src := `
		ORG 32768
		ASSERT 1 == 2
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	if len(res.Errors) == 0 {
		t.Fatal("expected an ASSERT failure to be recorded")
	}
}

func TestConditionalIfdefSkipsInactiveBranch(t *testing.T) {
	a := newTestAssembler()
	src := `
		ORG 32768
		IFDEF NOT_SET
			DB 1
		ELSE
			DB 2
		ENDIF
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	if len(res.Binary) != 1 || res.Binary[0] != 2 {
		t.Fatalf("binary = %v, want [2]", res.Binary)
	}
}

func TestSaveBinCapturesOutputSlice(t *testing.T) {
	a := newTestAssembler()
	src := `
		ORG 32768
		DB 1,2,3,4
		SAVEBIN "out.bin",32768,2
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	if len(res.Saves) != 1 {
		t.Fatalf("saves = %d, want 1", len(res.Saves))
	}
	if string(res.Saves[0].Data) != string([]byte{1, 2}) {
		t.Fatalf("save data = % X, want 01 02", res.Saves[0].Data)
	}
}

func TestSaveTapBuildsHeaderAndDataBlocks(t *testing.T) {
	a := newTestAssembler()
	src := `
		ORG 32768
		DB 1,2,3
		SAVETAP "out.tap","prog",32768,3
	`
	res, err := a.AssembleSource("main.asm", src, nil)
	if err != nil {
		t.Fatalf("AssembleSource: %v", err)
	}
	if len(res.Saves) != 1 {
		t.Fatalf("saves = %d, want 1", len(res.Saves))
	}
	data := res.Saves[0].Data
	// header block: 2-byte length + flag + 17-byte header + checksum = 21
	headerBlockLen := int(data[0]) | int(data[1])<<8
	if headerBlockLen != 19 {
		t.Fatalf("header block length = %d, want 19", headerBlockLen)
	}
	if data[2] != 0x00 {
		t.Fatalf("header flag = %X, want 00", data[2])
	}
}
