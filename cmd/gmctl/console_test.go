// cmd/gmctl/console_test.go
package main

import (
	"bytes"
	"strings"
	"testing"

	"greymatter/pkg/greymatter"
	"greymatter/pkg/transport"
)

type scriptedLink struct {
	sent      []string
	responses map[string]string
}

func (l *scriptedLink) SendCommand(cmd string) (string, error) {
	l.sent = append(l.sent, cmd)
	if cmd == "FAULT?" {
		return "", transport.ErrTimeout
	}
	return l.responses[cmd], nil
}

func (l *scriptedLink) Close() error { return nil }

func TestRepl(t *testing.T) {
	link := &scriptedLink{responses: map[string]string{
		"*IDN?":                  "GreyMatter,DAC,1.0",
		"BOARD9:SN?":             "ERROR: invalid board",
		"BOARD0:DAC0:CH0:CURR 1": "",
	}}
	gm := greymatter.New(link, 1)

	input := strings.Join([]string{
		"*IDN?",
		"",
		"BOARD9:SN?",
		"FAULT?",
		"BOARD0:DAC0:CH0:CURR 1",
		"quit",
		"*RST",
	}, "\n")

	var out bytes.Buffer
	editor := newScannerEditor(strings.NewReader(input), &out)
	if err := repl(editor, gm, &out); err != nil {
		t.Fatalf("repl() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"GreyMatter,DAC,1.0\n",
		"Error: ERROR: invalid board\n",
		"Error: Timeout waiting for response\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	if len(link.sent) != 4 {
		t.Errorf("sent = %q, want 4 commands before quit", link.sent)
	}
}

func TestRepl_EndOfInput(t *testing.T) {
	link := &scriptedLink{responses: map[string]string{"LDAC": ""}}

	var out bytes.Buffer
	editor := newScannerEditor(strings.NewReader("LDAC\n"), &out)
	if err := repl(editor, greymatter.New(link, 1), &out); err != nil {
		t.Fatalf("repl() error = %v", err)
	}
	if out.String() != prompt+prompt+"\n" {
		t.Errorf("output = %q", out.String())
	}
}

func TestExecute(t *testing.T) {
	link := &scriptedLink{responses: map[string]string{"*IDN?": "GM"}}
	gm := greymatter.New(link, 1)

	var out bytes.Buffer
	if !execute(gm, "*IDN?", &out) || out.String() != "GM\n" {
		t.Errorf("execute(*IDN?) output = %q", out.String())
	}
	out.Reset()
	if execute(gm, "FAULT?", &out) {
		t.Error("execute(FAULT?) reported success")
	}
}

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"device", []string{"--device", "/dev/ttyACM0", "*IDN?"}, false},
		{"address with pico", []string{"-a", "lab-host", "-p", "pico_1"}, false},
		{"list", []string{"--address", "lab-host", "--list"}, false},
		{"nothing", nil, true},
		{"both", []string{"-d", "/dev/ttyACM0", "-a", "lab-host"}, true},
		{"list without address", []string{"-d", "/dev/ttyACM0", "--list"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := parseOptions(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && tt.name == "device" {
				if opts.device != "/dev/ttyACM0" || len(opts.args) != 1 || opts.args[0] != "*IDN?" {
					t.Errorf("opts = %+v", opts)
				}
			}
		})
	}
}

func TestPrintDevices(t *testing.T) {
	var out bytes.Buffer
	printDevices(&out, []greymatter.DeviceInfo{{Name: "pico_0", Port: "/dev/ttyACM0", IDN: "GM-A"}})
	if !strings.HasPrefix(out.String(), "pico_0") || !strings.Contains(out.String(), "GM-A") {
		t.Errorf("output = %q", out.String())
	}

	out.Reset()
	printDevices(&out, nil)
	if out.String() != "No Pico boards connected\n" {
		t.Errorf("empty output = %q", out.String())
	}
}
