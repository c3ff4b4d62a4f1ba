package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"capscan/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

func bytesOf(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

func scope(f service.Filter) string {
	if f.Tenant == "" {
		return fmt.Sprintf("cloud %s, all tenants", f.Cloud)
	}
	return fmt.Sprintf("cloud %s, tenant %s", f.Cloud, f.Tenant)
}

// renderText prints the sections of r that are set as aligned tables
func renderText(out io.Writer, r *service.Report) error {
	heading := color.New(color.FgCyan, color.Bold)
	total := color.New(color.Bold)

	if est := r.Estimate; est != nil {
		heading.Fprintf(out, "Copy estimate (%s)\n", scope(r.Filter))
		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
		fmt.Fprintf(w, "Servers\t%d\t\n", est.Servers)
		fmt.Fprintf(w, "Images\t%d\t%s\n", est.Images, bytesOf(est.ImageBytes))
		fmt.Fprintf(w, "Ephemeral disks\t%d\t%s\n", est.EphemeralDisks, bytesOf(est.EphemeralBytes))
		fmt.Fprintf(w, "Volumes\t%d\t%s\n", est.Volumes, bytesOf(est.VolumeBytes))
		if err := w.Flush(); err != nil {
			return err
		}
		total.Fprintf(out, "Total %s\n", bytesOf(est.TotalBytes()))
	}

	if r.LargestServers != nil {
		if r.Estimate != nil {
			fmt.Fprintln(out)
		}
		heading.Fprintf(out, "Largest servers (%s)\n", scope(r.Filter))
		if len(r.LargestServers) == 0 {
			fmt.Fprintln(out, "No servers")
		} else {
			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "NAME\tID\tTOTAL\tIMAGE\tEPHEMERAL\tVOLUMES")
			for _, s := range r.LargestServers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", s.Name, s.ID.ID,
					bytesOf(s.Size), bytesOf(s.ImageSize), bytesOf(s.EphemeralSize), bytesOf(s.VolumeSize))
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}
	}

	if u := r.Unused; u != nil {
		if r.Estimate != nil || r.LargestServers != nil {
			fmt.Fprintln(out)
		}
		heading.Fprintf(out, "Largest unused volumes (%s)\n", scope(r.Filter))
		if err := renderResources(out, u.Volumes); err != nil {
			return err
		}
		total.Fprintf(out, "%d unused volumes, %s in total\n", u.VolumesCount, bytesOf(u.VolumesTotal))

		fmt.Fprintln(out)
		heading.Fprintf(out, "Largest unused images (%s)\n", scope(r.Filter))
		if err := renderResources(out, u.Images); err != nil {
			return err
		}
		total.Fprintf(out, "%d unused images, %s in total\n", u.ImagesCount, bytesOf(u.ImagesTotal))
	}

	return nil
}

func renderResources(out io.Writer, resources []service.ResourceUsage) error {
	if len(resources) == 0 {
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "NAME\tID\tSIZE")
	for _, r := range resources {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.ID.ID, bytesOf(r.Size))
	}
	return w.Flush()
}
