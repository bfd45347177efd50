package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbweber/winvm/internal/config"
	"github.com/jbweber/winvm/internal/hostexec"
	"github.com/jbweber/winvm/internal/hostexec/hostexectest"
)

func TestVirtualBoxCreate(t *testing.T) {
	runner := &hostexectest.Runner{}
	a := newTestAdapter(t, KindVirtualBox, runner, nil)
	d := testVM(t)
	d.CPUs = 4
	vdi := a.DiskPath(d)

	require.NoError(t, a.Create(context.Background(), d))

	require.Len(t, runner.RunCalls, 7)
	for _, c := range runner.RunCalls {
		assert.Equal(t, "VBoxManage", c.Name)
	}
	assert.Equal(t, [][]string{
		{"createvm", "--name", "Win11Test", "--ostype", "Windows10_64", "--register", "--basefolder", d.StorageDir},
		{"modifyvm", "Win11Test", "--memory", "4096", "--cpus", "4"},
		{"createmedium", "disk", "--filename", vdi, "--size", "51200"},
		{"storagectl", "Win11Test", "--name", "SATA Controller", "--add", "sata"},
		{"storageattach", "Win11Test", "--storagectl", "SATA Controller", "--port", "0", "--device", "0", "--type", "hdd", "--medium", vdi},
		{"storagectl", "Win11Test", "--name", "IDE Controller", "--add", "ide"},
		{"storageattach", "Win11Test", "--storagectl", "IDE Controller", "--port", "0", "--device", "0", "--type", "dvddrive", "--medium", d.ISOPath},
	}, argsOf(runner))
	assert.True(t, strings.HasSuffix(vdi, "Win11Test.vdi"))
}

func argsOf(runner *hostexectest.Runner) [][]string {
	out := make([][]string, len(runner.RunCalls))
	for i, c := range runner.RunCalls {
		out[i] = c.Args
	}
	return out
}

func TestVirtualBoxCreateFailure(t *testing.T) {
	runner := &hostexectest.Runner{RunFunc: func(_ string, args []string) (hostexec.Result, error) {
		if args[0] == "createvm" {
			return hostexectest.Exit(1, "VBoxManage: error: Machine settings file already exists"), nil
		}
		return hostexec.Result{}, nil
	}}
	a := newTestAdapter(t, KindVirtualBox, runner, nil)

	err := a.Create(context.Background(), testVM(t))

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Index)
	assert.Equal(t, 7, se.Total)
	assert.Len(t, runner.RunCalls, 1)
}

func TestVirtualBoxStart(t *testing.T) {
	runner := &hostexectest.Runner{}
	a := newTestAdapter(t, KindVirtualBox, runner, nil)
	require.NoError(t, a.Start(context.Background(), testVM(t), ""))
	assert.Equal(t, [][]string{{"startvm", "Win11Test"}}, argsOf(runner))

	runner = &hostexectest.Runner{}
	a = newTestAdapter(t, KindVirtualBox, runner, func(s *config.Settings) { s.Headless = true })
	require.NoError(t, a.Start(context.Background(), testVM(t), ""))
	assert.Equal(t, [][]string{{"startvm", "Win11Test", "--type", "headless"}}, argsOf(runner))
}

func TestVirtualBoxStopDelete(t *testing.T) {
	runner := &hostexectest.Runner{}
	a := newTestAdapter(t, KindVirtualBox, runner, func(s *config.Settings) {
		s.VBoxManage = `C:\Program Files\Oracle\VirtualBox\VBoxManage.exe`
	})
	d := testVM(t)

	require.NoError(t, a.Stop(context.Background(), d))
	require.NoError(t, a.Delete(context.Background(), d))

	assert.Equal(t, [][]string{
		{"controlvm", "Win11Test", "acpipowerbutton"},
		{"unregistervm", "Win11Test", "--delete"},
	}, argsOf(runner))
	assert.Equal(t, `C:\Program Files\Oracle\VirtualBox\VBoxManage.exe`, runner.RunCalls[0].Name)
}

func TestVirtualBoxNotFound(t *testing.T) {
	runner := &hostexectest.Runner{RunFunc: func(string, []string) (hostexec.Result, error) {
		return hostexectest.Exit(1, `VBoxManage: error: Could not find a registered machine named 'Win11Test'`), nil
	}}
	a := newTestAdapter(t, KindVirtualBox, runner, nil)
	d := testVM(t)

	assert.ErrorIs(t, a.Stop(context.Background(), d), ErrNotFound)
	assert.NoError(t, a.Delete(context.Background(), d), "deleting an unregistered VM succeeds")

	_, err := a.State(context.Background(), d)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseVBoxState(t *testing.T) {
	tests := []struct {
		out  string
		want PowerState
	}{
		{out: "name=\"Win11Test\"\nVMState=\"running\"\nVMStateChangeTime=\"2026-10-16T10:00:00\"\n", want: PowerRunning},
		{out: "VMState=\"poweroff\"\n", want: PowerStopped},
		{out: "VMState=\"aborted\"\r\n", want: PowerStopped},
		{out: "VMState=\"saved\"", want: PowerStopped},
		{out: "VMState=\"gurumeditation\"", want: PowerUnknown},
		{out: "name=\"x\"", want: PowerUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, parseVBoxState(tt.out), "output %q", tt.out)
	}
}

func TestNewUnsupported(t *testing.T) {
	_, err := New(Kind("xen"), Deps{Logger: testLogger()})
	assert.ErrorIs(t, err, ErrUnsupportedBackend)

	for _, k := range Kinds {
		a, err := New(k, Deps{Runner: &hostexectest.Runner{}, Logger: testLogger()})
		require.NoError(t, err)
		assert.Equal(t, k, a.Kind())
	}
}
